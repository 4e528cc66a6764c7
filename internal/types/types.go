package types

import "time"

// Farm is a property belonging to the authenticated tenant. The search
// endpoint embeds pastures and the unit of measure when asked to.
type Farm struct {
	FarmID        int64          `json:"farmId"`
	Name          string         `json:"name"`
	Address       string         `json:"address,omitempty"`
	City          string         `json:"city,omitempty"`
	State         string         `json:"state,omitempty"`
	Country       string         `json:"country,omitempty"`
	ZipCode       string         `json:"zipCode,omitempty"`
	AreaSize      string         `json:"areaSize,omitempty"`
	UnitOfMeasure *UnitOfMeasure `json:"unitOfMeasure,omitempty"`
	Status        string         `json:"status"`
	Pastures      []Pasture      `json:"pastures,omitempty"`
}

// Pasture is a subdivision of a farm.
type Pasture struct {
	PastureID           int64          `json:"pastureId"`
	Description         string         `json:"description"`
	FarmID              int64          `json:"farmId"`
	FarmName            string         `json:"farmName,omitempty"`
	Capacity            int64          `json:"capacity"`
	CapacityDescription string         `json:"capacityDescription"`
	AreaSize            float64        `json:"areaSize"`
	UnitOfMeasure       *UnitOfMeasure `json:"unitOfMeasure,omitempty"`
	Status              string         `json:"status"`
}

// Event classifies a movement (birth, purchase, transfer, ...).
type Event struct {
	EventID      int64         `json:"eventId"`
	Description  string        `json:"description"`
	Operation    string        `json:"operation"`
	EventDetails []EventDetail `json:"eventDetails,omitempty"`
	Status       string        `json:"status"`
}

// EventDetail is a sub-classification belonging to one Event.
type EventDetail struct {
	EventDetailID int64  `json:"eventDetailId"`
	EventID       int64  `json:"eventId"`
	Description   string `json:"description"`
	Status        string `json:"status"`
}

// Breed belongs to one animal type.
type Breed struct {
	BreedID      int64  `json:"breedId"`
	Name         string `json:"name"`
	AnimalTypeID int64  `json:"animalTypeId"`
	Status       string `json:"status"`
}

// AnimalType groups breeds and age groups.
type AnimalType struct {
	AnimalTypeID int64      `json:"animalTypeId"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	Breeds       []Breed    `json:"breeds,omitempty"`
	AgeGroups    []AgeGroup `json:"ageGroups,omitempty"`
}

// AgeGroup belongs to one animal type.
type AgeGroup struct {
	AgeGroupID   int64  `json:"ageGroupId"`
	Name         string `json:"name"`
	AnimalTypeID int64  `json:"animalTypeId"`
	Status       string `json:"status"`
}

// UnitOfMeasure is a measurement unit for areas and capacities.
type UnitOfMeasure struct {
	UnitOfMeasureID int64  `json:"unitOfMeasureId"`
	Name            string `json:"name"`
	Abbreviation    string `json:"abbreviation"`
	Status          string `json:"status,omitempty"`
}

// Movement is a recorded animal transfer. It is created locally with a
// ULID LocalID and uploaded later; MovementID stays zero until the server
// assigns one. Reference attributes are denormalized so a record renders
// offline without joins against the reference cache.
type Movement struct {
	LocalID                string           `json:"localId"`
	MovementID             int64            `json:"movementId,omitempty"`
	Date                   time.Time        `json:"date"`
	FarmID                 int64            `json:"farmId"`
	FarmName               string           `json:"farmName,omitempty"`
	PastureID              int64            `json:"pastureId"`
	PastureDescription     string           `json:"pastureDescription,omitempty"`
	EventID                int64            `json:"eventId"`
	EventDescription       string           `json:"eventDescription,omitempty"`
	EventOperation         string           `json:"eventOperation,omitempty"`
	EventDetailID          *int64           `json:"eventDetailId,omitempty"`
	EventDetailDescription string           `json:"eventDetailDescription,omitempty"`
	Comment                string           `json:"comment,omitempty"`
	Status                 string           `json:"status"`
	Synced                 bool             `json:"synced"`
	Details                []MovementDetail `json:"movementDetails"`
	Medias                 []MovementMedia  `json:"movementMedias"`
	CreatedAt              time.Time        `json:"createdAt,omitempty"`
	UpdatedAt              time.Time        `json:"updatedAt,omitempty"`
}

// MovementDetail breaks a movement down by animal type, breed, age group
// and gender. Owned exclusively by one Movement.
type MovementDetail struct {
	ID             int64           `json:"-"`
	AnimalTypeID   int64           `json:"animalTypeId"`
	AnimalTypeName string          `json:"animalTypeName,omitempty"`
	BreedID        int64           `json:"breedId"`
	BreedName      string          `json:"breedName,omitempty"`
	AgeGroupID     int64           `json:"ageGroupId"`
	AgeGroupName   string          `json:"ageGroupName,omitempty"`
	Gender         string          `json:"gender"`
	Quantity       int64           `json:"quantity"`
	Comment        string          `json:"comment,omitempty"`
	Medias         []MovementMedia `json:"movementMedias,omitempty"`
}

// MovementMedia is an attached file reference. A media row scoped to a
// detail lives in MovementDetail.Medias; one attached directly to the
// movement applies to the whole movement.
type MovementMedia struct {
	ID       int64  `json:"-"`
	FileType string `json:"fileType"`
	URL      string `json:"url"`
	Caption  string `json:"caption,omitempty"`
}

// UserData is the cached snapshot of the authenticated user, kept for
// offline login continuity. Data carries the raw profile JSON verbatim.
type UserData struct {
	UserID   int64     `json:"userxId"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Data     string    `json:"data"`
	LastSync time.Time `json:"lastSync"`
}

// SyncQueueItem is a generic deferred-work record. Items are removed on
// success; Attempts counts failed tries with no cap.
type SyncQueueItem struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Payload   []byte    `json:"payload"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stats are aggregate movement counts, global or per farm.
type Stats struct {
	TotalMovements int64 `json:"totalMovements"`
	PendingSync    int64 `json:"pendingSync"`
}

// TenantAccount is one selectable tenant returned by a first-phase login.
type TenantAccount struct {
	TenantID    int64  `json:"tenantId"`
	AccountName string `json:"accountName"`
}

// LoginResponse is the /auth/login payload. An empty Token together with a
// non-empty TenantAccounts list means the caller must pick a tenant and
// log in again.
type LoginResponse struct {
	Token          string          `json:"token,omitempty"`
	RefreshToken   string          `json:"refreshToken,omitempty"`
	TenantAccounts []TenantAccount `json:"tenantAccounts,omitempty"`
}

// NeedsTenantSelection reports whether the server asked for a tenant choice.
func (r *LoginResponse) NeedsTenantSelection() bool {
	return r.Token == "" && len(r.TenantAccounts) > 0
}

// UserInfo is the core identity of /app/user/info. Fields beyond these stay
// in the raw payload, which the session persists alongside as UserData.Data.
type UserInfo struct {
	UserID   int64  `json:"userxId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
