package main

import (
	"context"
	"fmt"
	"time"

	"github.com/devonagro/herdsync/internal/types"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

var movementsCmd = &cobra.Command{
	Use:   "movements",
	Short: "Record and inspect livestock movements",
}

var movementsFarmID int64

var movementsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded movements, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runMovementsList,
}

var (
	addDate          string
	addFarmID        int64
	addPastureID     int64
	addEventID       int64
	addEventDetailID int64
	addComment       string
	addAnimalTypeID  int64
	addBreedID       int64
	addAgeGroupID    int64
	addGender        string
	addQuantity      int64
)

var movementsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a movement locally for later sync",
	Args:  cobra.NoArgs,
	RunE:  runMovementsAdd,
}

func init() {
	movementsListCmd.Flags().Int64Var(&movementsFarmID, "farm", 0,
		"Only movements for this farm id")

	movementsAddCmd.Flags().StringVar(&addDate, "date", "",
		"Movement date, RFC 3339 or 2006-01-02 (default now)")
	movementsAddCmd.Flags().Int64Var(&addFarmID, "farm", 0, "Farm id")
	movementsAddCmd.Flags().Int64Var(&addPastureID, "pasture", 0, "Pasture id")
	movementsAddCmd.Flags().Int64Var(&addEventID, "event", 0, "Event id")
	movementsAddCmd.Flags().Int64Var(&addEventDetailID, "event-detail", 0, "Event detail id")
	movementsAddCmd.Flags().StringVar(&addComment, "comment", "", "Free-form comment")
	movementsAddCmd.Flags().Int64Var(&addAnimalTypeID, "animal-type", 0, "Animal type id")
	movementsAddCmd.Flags().Int64Var(&addBreedID, "breed", 0, "Breed id")
	movementsAddCmd.Flags().Int64Var(&addAgeGroupID, "age-group", 0, "Age group id")
	movementsAddCmd.Flags().StringVar(&addGender, "gender", "", "Gender (M or F)")
	movementsAddCmd.Flags().Int64Var(&addQuantity, "quantity", 0, "Head count")
	movementsAddCmd.MarkFlagRequired("farm")
	movementsAddCmd.MarkFlagRequired("pasture")
	movementsAddCmd.MarkFlagRequired("event")
	movementsAddCmd.MarkFlagRequired("quantity")

	movementsCmd.AddCommand(movementsListCmd)
	movementsCmd.AddCommand(movementsAddCmd)
}

func runMovementsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var movements []types.Movement
	if movementsFarmID != 0 {
		movements, err = a.db.GetMovementsByFarm(ctx, movementsFarmID)
	} else {
		movements, err = a.db.GetMovements(ctx)
	}
	if err != nil {
		return fmt.Errorf("list movements: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"movements": movements,
			"total":     len(movements),
		})
	}

	if len(movements) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No movements recorded.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "LOCAL ID\tDATE\tFARM\tEVENT\tHEAD\tSYNCED")
	for _, m := range movements {
		var head int64
		for _, d := range m.Details {
			head += d.Quantity
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			m.LocalID,
			m.Date.Format("2006-01-02"),
			m.FarmID,
			m.EventID,
			head,
			boolWord(m.Synced, "yes", "no"),
		)
	}
	w.Flush()

	return nil
}

func runMovementsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	date := time.Now()
	if addDate != "" {
		date, err = parseDate(addDate)
		if err != nil {
			return err
		}
	}

	m := &types.Movement{
		LocalID:   ulid.Make().String(),
		Date:      date,
		FarmID:    addFarmID,
		PastureID: addPastureID,
		EventID:   addEventID,
		Comment:   addComment,
		Details: []types.MovementDetail{{
			AnimalTypeID: addAnimalTypeID,
			BreedID:      addBreedID,
			AgeGroupID:   addAgeGroupID,
			Gender:       addGender,
			Quantity:     addQuantity,
		}},
	}
	if addEventDetailID != 0 {
		m.EventDetailID = &addEventDetailID
	}

	if _, err := a.db.SaveMovement(ctx, m); err != nil {
		return fmt.Errorf("save movement: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Recorded movement %s (pending sync).\n", m.LocalID)
	return nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
