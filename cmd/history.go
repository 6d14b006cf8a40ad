package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/albumdrop/internal/formatter"
	"github.com/desertthunder/albumdrop/internal/repositories"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recent batches, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	batches, err := repositories.NewBatchRepository(db).List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		for _, b := range batches {
			data, err := formatter.BatchToJSON(b, false)
			if err != nil {
				return err
			}
			r.writePlain("%s\n", data)
		}
		return nil
	}

	if len(batches) == 0 {
		return r.writePlain("No batches recorded\n")
	}
	return formatter.WriteHistory(r.output, batches)
}

// HistoryShow renders a single batch with its items.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	batch, err := repositories.NewBatchRepository(db).Get(cmd.String("id"))
	if err != nil {
		return err
	}

	format := cmd.String("format")
	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(batch, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("batch exported", "path", written)
		return r.writePlain("Exported batch %d to %s\n", batch.Sequence(), written)
	}

	data, err := formatter.Format(batch, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", data)
}

// HistoryDelete soft-deletes a batch.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	id := cmd.String("id")
	if err := repositories.NewBatchRepository(db).Delete(id); err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	return r.writePlain("Deleted batch %s\n", id)
}
