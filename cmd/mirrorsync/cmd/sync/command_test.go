package sync

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/mirrorsync"
	"github.com/agentstation/mirrorsync/cmd/application"
	"github.com/agentstation/mirrorsync/internal/sources"
	pkgerrors "github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store/memory"
)

type fixture struct {
	gw    *memory.Store
	form  *sources.Static
	sheet *sources.Static
	app   *application.Mock
}

func newFixture(t *testing.T, format string) *fixture {
	t.Helper()
	f := &fixture{
		gw:    memory.New(),
		form:  &sources.Static{From: records.OriginForm},
		sheet: &sources.Static{From: records.OriginSheet},
	}
	client, err := mirrorsync.New(f.gw, sources.NewSet(f.form, f.sheet))
	require.NoError(t, err)
	f.app = &application.Mock{
		ClientFunc: func() (mirrorsync.Client, error) { return client, nil },
		Format:     format,
	}
	return f
}

func rec(origin records.Origin, key string, volume float64) records.SourceRecord {
	return records.SourceRecord{
		Key:    key,
		Origin: origin,
		Fields: records.Fields{"vial1_volume": volume},
	}
}

func execute(t *testing.T, app application.Application, args ...string) (string, string, error) {
	t.Helper()
	root := &cobra.Command{Use: "mirrorsync"}
	root.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	root.AddCommand(NewCommand(app))

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"sync"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSyncSheetJSON(t *testing.T) {
	f := newFixture(t, "json")
	f.sheet.Set([]records.SourceRecord{
		rec(records.OriginSheet, "A", 1),
		rec(records.OriginSheet, "B", 2),
		rec(records.OriginSheet, "B", 3),
	}, nil)

	out, _, err := execute(t, f.app, "sheet")
	require.NoError(t, err)

	var got []reconcile.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, records.OriginSheet, got[0].Origin)
	assert.Equal(t, 1, got[0].Added)
	assert.Equal(t, 1, got[0].Duplicates)
	assert.NotEmpty(t, got[0].RunID)
	assert.Equal(t, 1, f.gw.Len("mirror_sheet"))
}

func TestSyncAllTable(t *testing.T) {
	f := newFixture(t, "table")
	f.form.Set([]records.SourceRecord{rec(records.OriginForm, "A", 1)}, nil)
	f.sheet.Set([]records.SourceRecord{rec(records.OriginSheet, "A", 1)}, nil)

	out, errOut, err := execute(t, f.app)
	require.NoError(t, err)

	assert.Contains(t, out, "form")
	assert.Contains(t, out, "sheet")
	assert.Contains(t, errOut, "Sync completed")
}

func TestSyncDryRun(t *testing.T) {
	f := newFixture(t, "table")
	f.sheet.Set([]records.SourceRecord{rec(records.OriginSheet, "A", 1)}, nil)

	out, errOut, err := execute(t, f.app, "airtable", "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "dry run")
	assert.Contains(t, errOut, "nothing was written")
	assert.Equal(t, 0, f.gw.Len("mirror_sheet"))
}

func TestSyncFetchFailure(t *testing.T) {
	f := newFixture(t, "json")
	f.form.Set(nil, pkgerrors.NewAPIError("typeform", http.StatusBadGateway, "down"))

	_, _, err := execute(t, f.app, "form")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsFetchError(err))
	assert.Equal(t, 0, f.gw.Len("mirror_form"))
}

func TestSyncRejectsUnknownOrigin(t *testing.T) {
	f := newFixture(t, "json")
	_, _, err := execute(t, f.app, "ledger")
	require.Error(t, err)
}

func TestSyncRejectsUnknownFormat(t *testing.T) {
	f := newFixture(t, "wide")
	_, _, err := execute(t, f.app, "sheet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestSyncWithoutClient(t *testing.T) {
	_, _, err := execute(t, &application.Mock{Format: "json"})
	var cfgErr *pkgerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
