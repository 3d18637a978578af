// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package bulkstore implements the bulk half of the hybrid storage: large
// JSON artifacts, one file per constellation, holding the full position
// timeseries and signal timelines. Writes are atomic (tmp file + rename)
// and in-flight files are removed on cancellation.
package bulkstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	// Error is the default bulkstore errs class.
	Error = errs.Class("bulkstore")

	mon = monkit.Package()
)

// Artifact describes one file written into the bulk store.
type Artifact struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// Writer emits bulk JSON artifacts under a run directory.
type Writer struct {
	log *zap.Logger
	dir string
}

// NewWriter creates a bulk writer rooted at dir. The directory is created
// on first write.
func NewWriter(log *zap.Logger, dir string) *Writer {
	return &Writer{log: log, dir: dir}
}

// Dir returns the bulk store root.
func (w *Writer) Dir() string { return w.dir }

// PurgePreviousRuns removes subdirectories left by earlier runs. Only the
// children of the bulk root are touched, never the root itself or its
// parents.
func (w *Writer) PurgePreviousRuns() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return Error.Wrap(err)
	}
	var group errs.Group
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		w.log.Debug("purging previous run directory", zap.String("dir", entry.Name()))
		group.Add(os.RemoveAll(filepath.Join(w.dir, entry.Name())))
	}
	return Error.Wrap(group.Err())
}

// WriteJSON atomically writes one named artifact. On context cancellation
// the temporary file is removed and nothing appears at the final path.
func (w *Writer) WriteJSON(ctx context.Context, name string, payload interface{}) (_ Artifact, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return Artifact{}, Error.Wrap(err)
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return Artifact{}, Error.Wrap(err)
	}

	final := filepath.Join(w.dir, name)
	tmp := final + ".tmp"

	if err := ctx.Err(); err != nil {
		return Artifact{}, Error.Wrap(err)
	}
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return Artifact{}, Error.Wrap(err)
	}
	if err := ctx.Err(); err != nil {
		// Abandon the in-flight write; the final path stays untouched.
		_ = os.Remove(tmp)
		return Artifact{}, Error.Wrap(err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return Artifact{}, Error.Wrap(err)
	}

	mon.IntVal("bulk_artifact_bytes").Observe(int64(len(raw)))
	return Artifact{Name: name, Path: final, Bytes: int64(len(raw))}, nil
}

// WriteTimeseries writes the full per-constellation timeseries artifact.
func (w *Writer) WriteTimeseries(ctx context.Context, constellation string, payload interface{}) (Artifact, error) {
	return w.WriteJSON(ctx, constellation+"_timeseries.json", payload)
}

// WriteEvents writes a handover event artifact for one event kind.
func (w *Writer) WriteEvents(ctx context.Context, kind string, payload interface{}) (Artifact, error) {
	return w.WriteJSON(ctx, "handover_events_"+kind+".json", payload)
}

// List returns the artifacts currently present in the bulk root, sorted by
// name, with their sizes.
func (w *Writer) List() ([]Artifact, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		artifacts = append(artifacts, Artifact{
			Name:  entry.Name(),
			Path:  filepath.Join(w.dir, entry.Name()),
			Bytes: info.Size(),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}
