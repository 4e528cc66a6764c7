package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devonagro/herdsync/internal/types"
)

// SaveMovement inserts a movement together with all of its detail and media
// rows in one transaction; on any failure nothing is visible. The row is
// always inserted with synced=0 regardless of the flag on the value. Returns
// the store-assigned rowid.
func (s *Store) SaveMovement(ctx context.Context, m *types.Movement) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	now := nowRFC3339()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var movementID any
	if m.MovementID != 0 {
		movementID = m.MovementID
	}
	var eventDetailID any
	if m.EventDetailID != nil {
		eventDetailID = *m.EventDetailID
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO movements (
			local_id, movement_id, date, farm_id, farm_name, pasture_id, pasture_description,
			event_id, event_description, event_operation, event_detail_id, event_detail_description,
			comment, status, synced, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`,
		m.LocalID, movementID, m.Date.UTC().Format(time.RFC3339), m.FarmID, m.FarmName,
		m.PastureID, m.PastureDescription, m.EventID, m.EventDescription, m.EventOperation,
		eventDetailID, m.EventDetailDescription, m.Comment, m.Status, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert movement: %w", err)
	}

	rowID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("movement rowid: %w", err)
	}

	for _, detail := range m.Details {
		detailRes, err := tx.ExecContext(ctx, `
			INSERT INTO movement_details (
				movement_local_id, animal_type_id, animal_type_name,
				breed_id, breed_name, age_group_id, age_group_name,
				gender, quantity, comment, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			m.LocalID, detail.AnimalTypeID, detail.AnimalTypeName,
			detail.BreedID, detail.BreedName, detail.AgeGroupID, detail.AgeGroupName,
			detail.Gender, detail.Quantity, detail.Comment, now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert movement detail: %w", err)
		}
		detailID, err := detailRes.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("movement detail rowid: %w", err)
		}

		for _, media := range detail.Medias {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO movement_medias (
					movement_local_id, detail_id, file_type, url, caption, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`, m.LocalID, detailID, media.FileType, media.URL, media.Caption, now, now)
			if err != nil {
				return 0, fmt.Errorf("insert detail media: %w", err)
			}
		}
	}

	for _, media := range m.Medias {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO movement_medias (
				movement_local_id, detail_id, file_type, url, caption, created_at, updated_at
			) VALUES (?, NULL, ?, ?, ?, ?, ?)
		`, m.LocalID, media.FileType, media.URL, media.Caption, now, now)
		if err != nil {
			return 0, fmt.Errorf("insert movement media: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return rowID, nil
}

const movementColumns = `local_id, movement_id, date, farm_id, farm_name, pasture_id, pasture_description,
	event_id, event_description, event_operation, event_detail_id, event_detail_description,
	comment, status, synced, created_at, updated_at`

// GetMovements returns all movements, most recent first, each fully
// reconstructed with its detail and media children.
func (s *Store) GetMovements(ctx context.Context) ([]types.Movement, error) {
	return s.queryMovements(ctx,
		`SELECT `+movementColumns+` FROM movements ORDER BY date DESC, created_at DESC`)
}

// GetMovementsByFarm returns movements for one farm, most recent first.
func (s *Store) GetMovementsByFarm(ctx context.Context, farmID int64) ([]types.Movement, error) {
	return s.queryMovements(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE farm_id = ? ORDER BY date DESC, created_at DESC`,
		farmID)
}

// GetPendingMovements returns unsynced movements oldest-created first, the
// order the sync engine uploads them in.
func (s *Store) GetPendingMovements(ctx context.Context) ([]types.Movement, error) {
	return s.queryMovements(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE synced = 0 ORDER BY created_at ASC, id ASC`)
}

// GetMovementByID returns the movement carrying the given server identifier,
// or ErrNotFound.
func (s *Store) GetMovementByID(ctx context.Context, movementID int64) (*types.Movement, error) {
	movements, err := s.queryMovements(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE movement_id = ?`, movementID)
	if err != nil {
		return nil, err
	}
	if len(movements) == 0 {
		return nil, ErrNotFound
	}
	return &movements[0], nil
}

func (s *Store) queryMovements(ctx context.Context, query string, args ...any) ([]types.Movement, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var movements []types.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		movements = append(movements, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movements: %w", err)
	}

	// Reads amplify to one query per movement for details plus medias.
	// Fine at local-cache scale; a server port would join instead.
	for i := range movements {
		if err := s.loadChildren(ctx, db, &movements[i]); err != nil {
			return nil, err
		}
	}

	return movements, nil
}

func scanMovement(scanner interface{ Scan(...any) error }) (*types.Movement, error) {
	var m types.Movement
	var movementID, eventDetailID sql.NullInt64
	var farmName, pastureDesc, eventDesc, eventOp, eventDetailDesc, comment sql.NullString
	var synced int
	var date, createdAt, updatedAt string

	err := scanner.Scan(
		&m.LocalID,
		&movementID,
		&date,
		&m.FarmID,
		&farmName,
		&m.PastureID,
		&pastureDesc,
		&m.EventID,
		&eventDesc,
		&eventOp,
		&eventDetailID,
		&eventDetailDesc,
		&comment,
		&m.Status,
		&synced,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if movementID.Valid {
		m.MovementID = movementID.Int64
	}
	if eventDetailID.Valid {
		id := eventDetailID.Int64
		m.EventDetailID = &id
	}
	m.FarmName = farmName.String
	m.PastureDescription = pastureDesc.String
	m.EventDescription = eventDesc.String
	m.EventOperation = eventOp.String
	m.EventDetailDescription = eventDetailDesc.String
	m.Comment = comment.String
	m.Synced = synced != 0
	m.Date = parseTime(date)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)

	return &m, nil
}

func (s *Store) loadChildren(ctx context.Context, db *sql.DB, m *types.Movement) error {
	detailRows, err := db.QueryContext(ctx, `
		SELECT id, animal_type_id, animal_type_name, breed_id, breed_name,
		       age_group_id, age_group_name, gender, quantity, comment
		FROM movement_details WHERE movement_local_id = ? ORDER BY id ASC
	`, m.LocalID)
	if err != nil {
		return fmt.Errorf("query movement details: %w", err)
	}
	defer detailRows.Close()

	m.Details = []types.MovementDetail{}
	for detailRows.Next() {
		var d types.MovementDetail
		var animalTypeName, breedName, ageGroupName, comment sql.NullString
		if err := detailRows.Scan(
			&d.ID, &d.AnimalTypeID, &animalTypeName, &d.BreedID, &breedName,
			&d.AgeGroupID, &ageGroupName, &d.Gender, &d.Quantity, &comment,
		); err != nil {
			return fmt.Errorf("scan movement detail: %w", err)
		}
		d.AnimalTypeName = animalTypeName.String
		d.BreedName = breedName.String
		d.AgeGroupName = ageGroupName.String
		d.Comment = comment.String
		m.Details = append(m.Details, d)
	}
	if err := detailRows.Err(); err != nil {
		return fmt.Errorf("iterate movement details: %w", err)
	}

	for i := range m.Details {
		medias, err := s.queryMedias(ctx, db,
			`SELECT id, file_type, url, caption FROM movement_medias WHERE detail_id = ? ORDER BY id ASC`,
			m.Details[i].ID)
		if err != nil {
			return err
		}
		m.Details[i].Medias = medias
	}

	medias, err := s.queryMedias(ctx, db,
		`SELECT id, file_type, url, caption FROM movement_medias WHERE movement_local_id = ? AND detail_id IS NULL ORDER BY id ASC`,
		m.LocalID)
	if err != nil {
		return err
	}
	m.Medias = medias

	return nil
}

func (s *Store) queryMedias(ctx context.Context, db *sql.DB, query string, args ...any) ([]types.MovementMedia, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movement medias: %w", err)
	}
	defer rows.Close()

	medias := []types.MovementMedia{}
	for rows.Next() {
		var media types.MovementMedia
		var caption sql.NullString
		if err := rows.Scan(&media.ID, &media.FileType, &media.URL, &caption); err != nil {
			return nil, fmt.Errorf("scan movement media: %w", err)
		}
		media.Caption = caption.String
		medias = append(medias, media)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement medias: %w", err)
	}
	return medias, nil
}

// MarkMovementAsSynced flips the row matching localID to synced=1 and records
// the server-assigned identifier. A missing row is not an error: the record
// may have been wiped by a concurrent user-initiated reset.
func (s *Store) MarkMovementAsSynced(ctx context.Context, localID string, movementID int64) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		UPDATE movements SET synced = 1, movement_id = ?, updated_at = ? WHERE local_id = ?
	`, movementID, nowRFC3339(), localID)
	if err != nil {
		return fmt.Errorf("mark movement synced: %w", err)
	}
	return nil
}

// DeleteMovement removes a movement and its children by local id, in one
// transaction. Cascade happens here: the storage engine offers no cascading
// delete guarantee across these tables.
func (s *Store) DeleteMovement(ctx context.Context, localID string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM movement_medias WHERE movement_local_id = ?`, localID); err != nil {
		return fmt.Errorf("delete movement medias: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM movement_details WHERE movement_local_id = ?`, localID); err != nil {
		return fmt.Errorf("delete movement details: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ClearMovements removes all movements and children transactionally.
func (s *Store) ClearMovements(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"movement_medias", "movement_details", "movements"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear table %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
