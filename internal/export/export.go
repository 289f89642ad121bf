// Package export reads and writes project bundles.
//
// A bundle is a JSONL stream: a header record, then one record per
// entity. Bundles move projects between databases (embedded SQLite to a
// hosted Postgres and back) and double as a plain-text backup format.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/mod/semver"

	"github.com/spectreweave/spectreweave/internal/schema"
	"github.com/spectreweave/spectreweave/internal/store"
)

// BundleFormat identifies the stream in the header record.
const BundleFormat = "spectreweave-bundle"

// BundleVersion is the bundle format version written by this build.
// Imports accept any bundle with the same major version.
const BundleVersion = "v1.0.0"

// Record kinds, in the order they appear in a bundle.
const (
	kindHeader    = "header"
	kindProject   = "project"
	kindChapter   = "chapter"
	kindCharacter = "character"
	kindPage      = "page"
	kindAgent     = "agent"
	kindPipeline  = "pipeline"
)

type record struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`

	// Header-only fields.
	Format     string    `json:"format,omitempty"`
	Version    string    `json:"version,omitempty"`
	ExportedAt time.Time `json:"exported_at,omitempty"`
}

// Result summarizes an export or import.
type Result struct {
	Projects   int
	Chapters   int
	Characters int
	Pages      int
	Agents     int
	Pipelines  int

	// Errors are per-record failures. The operation continues past them.
	Errors []string
}

// Total returns the number of entities processed.
func (r *Result) Total() int {
	return r.Projects + r.Chapters + r.Characters + r.Pages + r.Agents + r.Pipelines
}

// Export writes one project and its content as a bundle. The owner's
// agents and pipelines ride along so a restored project can still run
// its workflows.
func Export(ctx context.Context, st *store.Store, owner, projectID string, w io.Writer) (*Result, error) {
	project, err := st.GetProject(ctx, owner, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(record{
		Kind:       kindHeader,
		Format:     BundleFormat,
		Version:    BundleVersion,
		ExportedAt: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	result := &Result{}

	if err := writeRecord(enc, kindProject, project); err != nil {
		return nil, err
	}
	result.Projects++

	chapters, err := st.ListChapters(ctx, owner, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	for _, c := range chapters {
		if err := writeRecord(enc, kindChapter, c); err != nil {
			return nil, err
		}
		result.Chapters++
	}

	characters, err := st.ListCharacters(ctx, owner, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	for _, c := range characters {
		if err := writeRecord(enc, kindCharacter, c); err != nil {
			return nil, err
		}
		result.Characters++
	}

	pages, err := st.ListBookPages(ctx, owner, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	for _, p := range pages {
		if err := writeRecord(enc, kindPage, p); err != nil {
			return nil, err
		}
		result.Pages++
	}

	agents, err := st.ListAgents(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	for _, a := range agents {
		if err := writeRecord(enc, kindAgent, a); err != nil {
			return nil, err
		}
		result.Agents++
	}

	pipelines, err := st.ListPipelines(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	for _, p := range pipelines {
		if err := writeRecord(enc, kindPipeline, p); err != nil {
			return nil, err
		}
		result.Pipelines++
	}

	return result, nil
}

// Import reads a bundle and inserts its entities for owner. Records that
// collide with existing rows are skipped and reported in Result.Errors;
// the rest of the bundle still imports. With dryRun set, records are
// decoded and validated but nothing is written.
func Import(ctx context.Context, st *store.Store, owner string, r io.Reader, dryRun bool) (*Result, error) {
	dec := json.NewDecoder(r)

	var header record
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to read bundle header: %w", err)
	}
	if header.Kind != kindHeader || header.Format != BundleFormat {
		return nil, fmt.Errorf("not a %s stream", BundleFormat)
	}
	if !compatibleBundle(header.Version) {
		return nil, fmt.Errorf("bundle version %s is not compatible with %s", header.Version, BundleVersion)
	}

	result := &Result{}
	line := 1

	for {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid record at line %d: %w", line+1, err)
		}
		line++

		if err := importRecord(ctx, st, owner, &rec, result, dryRun); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
		}
	}

	return result, nil
}

func importRecord(ctx context.Context, st *store.Store, owner string, rec *record, result *Result, dryRun bool) error {
	switch rec.Kind {
	case kindProject:
		var p schema.Project
		if err := json.Unmarshal(rec.Data, &p); err != nil {
			return fmt.Errorf("bad project record: %w", err)
		}
		p.SetDefaults()
		if dryRun {
			if err := p.Validate(); err != nil {
				return err
			}
		} else if err := st.CreateProject(ctx, owner, &p); err != nil {
			return err
		}
		result.Projects++

	case kindChapter:
		var c schema.Chapter
		if err := json.Unmarshal(rec.Data, &c); err != nil {
			return fmt.Errorf("bad chapter record: %w", err)
		}
		c.SetDefaults()
		if dryRun {
			if err := c.Validate(); err != nil {
				return err
			}
		} else if err := st.CreateChapter(ctx, owner, &c); err != nil {
			return err
		}
		result.Chapters++

	case kindCharacter:
		var c schema.Character
		if err := json.Unmarshal(rec.Data, &c); err != nil {
			return fmt.Errorf("bad character record: %w", err)
		}
		c.SetDefaults()
		if dryRun {
			if err := c.Validate(); err != nil {
				return err
			}
		} else if err := st.CreateCharacter(ctx, owner, &c); err != nil {
			return err
		}
		result.Characters++

	case kindPage:
		var p schema.BookPage
		if err := json.Unmarshal(rec.Data, &p); err != nil {
			return fmt.Errorf("bad page record: %w", err)
		}
		p.SetDefaults()
		if dryRun {
			if err := p.Validate(); err != nil {
				return err
			}
		} else if err := st.CreateBookPage(ctx, owner, &p); err != nil {
			return err
		}
		result.Pages++

	case kindAgent:
		var a schema.Agent
		if err := json.Unmarshal(rec.Data, &a); err != nil {
			return fmt.Errorf("bad agent record: %w", err)
		}
		a.SetDefaults()
		if dryRun {
			if err := a.Validate(); err != nil {
				return err
			}
		} else if err := st.CreateAgent(ctx, owner, &a); err != nil {
			return err
		}
		result.Agents++

	case kindPipeline:
		var p schema.Pipeline
		if err := json.Unmarshal(rec.Data, &p); err != nil {
			return fmt.Errorf("bad pipeline record: %w", err)
		}
		p.SetDefaults()
		if dryRun {
			if err := p.Validate(); err != nil {
				return err
			}
		} else if err := st.CreatePipeline(ctx, owner, &p); err != nil {
			return err
		}
		result.Pipelines++

	default:
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
	return nil
}

func writeRecord(enc *json.Encoder, kind string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	if err := enc.Encode(record{Kind: kind, Data: payload}); err != nil {
		return fmt.Errorf("failed to write %s record: %w", kind, err)
	}
	return nil
}

func compatibleBundle(version string) bool {
	if !semver.IsValid(version) {
		return false
	}
	return semver.Major(version) == semver.Major(BundleVersion)
}
