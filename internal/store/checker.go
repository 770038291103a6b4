package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// FindingKind classifies a consistency finding.
type FindingKind string

// FindingOrphanAction is an action whose folder_id matches no folder.
const FindingOrphanAction FindingKind = "orphan_action"

// Finding is one referential problem found by CheckConsistency.
type Finding struct {
	Kind        FindingKind
	ActionID    int64
	FolderID    int64
	Description string
	Repaired    bool
}

func (f Finding) String() string {
	s := fmt.Sprintf("%s: action %d references missing folder %d", f.Kind, f.ActionID, f.FolderID)
	if f.Repaired {
		s += " (deleted)"
	}
	return s
}

// Reporter receives consistency findings as they are found.
type Reporter interface {
	Report(f Finding)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(f Finding)

// Report calls fn(f).
func (fn ReporterFunc) Report(f Finding) { fn(f) }

// CheckResult summarizes one consistency pass.
type CheckResult struct {
	RunID    string
	Findings []Finding
	Repaired int
}

// CheckConsistency scans for actions whose folder no longer exists and
// reports each one to reporter (which may be nil).
//
// With repair set, orphaned rows are deleted in one transaction and every
// deletion is logged. Without repair, failFast stops at the first finding
// and returns an error wrapping ErrInconsistent; otherwise the scan runs to
// completion and only reports. Dangling project references are tolerated
// and not reported.
//
// The check may run on a background goroutine, but no folder or action may
// be created, deleted or reordered while a repairing pass is running.
func (s *Store) CheckConsistency(ctx context.Context, reporter Reporter, failFast, repair bool) (CheckResult, error) {
	res := CheckResult{RunID: uuid.New().String()}
	log := s.logger.With("run_id", res.RunID)

	ext, err := s.sess.ext()
	if err != nil {
		return res, err
	}

	rows, err := ext.QueryxContext(ctx, `
		SELECT a.id, a.folder_id, a.description
		FROM actions a
		LEFT JOIN folders f ON f.id = a.folder_id
		WHERE f.id IS NULL
		ORDER BY a.id`)
	if err != nil {
		return res, fmt.Errorf("scanning for orphaned actions: %w", err)
	}

	var orphans []Finding
	for rows.Next() {
		f := Finding{Kind: FindingOrphanAction}
		if err := rows.Scan(&f.ActionID, &f.FolderID, &f.Description); err != nil {
			rows.Close()
			return res, fmt.Errorf("scanning orphan row: %w", err)
		}
		orphans = append(orphans, f)
		if failFast && !repair {
			break
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return res, fmt.Errorf("reading orphan rows: %w", err)
	}
	rows.Close()

	if !repair {
		for _, f := range orphans {
			res.Findings = append(res.Findings, f)
			if reporter != nil {
				reporter.Report(f)
			}
			if failFast {
				log.Warn("consistency check failed", "finding", f.String())
				return res, fmt.Errorf("%w: %s", ErrInconsistent, f)
			}
		}
		log.Info("consistency check finished", "findings", len(res.Findings))
		return res, nil
	}

	err = s.sess.atomic(ctx, func() error {
		ext, err := s.sess.ext()
		if err != nil {
			return err
		}
		for i := range orphans {
			if _, err := ext.ExecContext(ctx, "DELETE FROM actions WHERE id = ?", orphans[i].ActionID); err != nil {
				return fmt.Errorf("deleting orphaned action %d: %w", orphans[i].ActionID, err)
			}
			orphans[i].Repaired = true
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	for _, f := range orphans {
		log.Warn("repaired orphaned action", "action_id", f.ActionID, "folder_id", f.FolderID)
		res.Findings = append(res.Findings, f)
		res.Repaired++
		if reporter != nil {
			reporter.Report(f)
		}
	}
	log.Info("consistency check finished", "findings", len(res.Findings), "repaired", res.Repaired)
	return res, nil
}
