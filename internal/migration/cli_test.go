package migration

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upCalled, downCalled, downAllCalled bool
	steps                               int
	gotoVersion                         uint
	forceVersion                        int
	version                             uint
	dirty                               bool
	statuses                            []MigrationStatus
	info                                *MigrationInfo
	err                                 error
}

func (f *fakeMigrator) Up(ctx context.Context) error       { f.upCalled = true; return f.err }
func (f *fakeMigrator) Down(ctx context.Context) error     { f.downCalled = true; return f.err }
func (f *fakeMigrator) DownAll(ctx context.Context) error  { f.downAllCalled = true; return f.err }
func (f *fakeMigrator) Steps(ctx context.Context, n int) error {
	f.steps = n
	return f.err
}
func (f *fakeMigrator) Goto(ctx context.Context, version uint) error {
	f.gotoVersion = version
	return f.err
}
func (f *fakeMigrator) Force(ctx context.Context, version int) error {
	f.forceVersion = version
	return f.err
}
func (f *fakeMigrator) Version(ctx context.Context) (uint, bool, error) {
	return f.version, f.dirty, f.err
}
func (f *fakeMigrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	return f.statuses, f.err
}
func (f *fakeMigrator) Info(ctx context.Context) (*MigrationInfo, error) { return f.info, f.err }
func (f *fakeMigrator) Close() error                                    { return nil }

var _ Migrator = (*fakeMigrator)(nil)

func TestCLI_RunUp(t *testing.T) {
	t.Parallel()

	fm := &fakeMigrator{info: &MigrationInfo{CurrentVersion: 3}}
	var buf bytes.Buffer
	cli := NewCLI(fm)
	cli.SetOutput(&buf)

	require.NoError(t, cli.RunUp(context.Background()))
	require.True(t, fm.upCalled)
	require.Contains(t, buf.String(), "version: 3")
}

func TestCLI_RunGoto(t *testing.T) {
	t.Parallel()

	fm := &fakeMigrator{}
	var buf bytes.Buffer
	cli := NewCLI(fm)
	cli.SetOutput(&buf)

	require.NoError(t, cli.RunGoto(context.Background(), 5))
	require.Equal(t, uint(5), fm.gotoVersion)
}

func TestCLI_RunVersion_NoMigrationsApplied(t *testing.T) {
	t.Parallel()

	fm := &fakeMigrator{version: 0}
	var buf bytes.Buffer
	cli := NewCLI(fm)
	cli.SetOutput(&buf)

	require.NoError(t, cli.RunVersion(context.Background()))
	require.Contains(t, buf.String(), "No migrations applied yet.")
}

func TestCLI_RunStatus(t *testing.T) {
	t.Parallel()

	fm := &fakeMigrator{
		statuses: []MigrationStatus{
			{Version: 1, Name: "init_memory_schema", Applied: true},
			{Version: 2, Name: "add_workflow_memories", Applied: false},
		},
		info: &MigrationInfo{TotalMigrations: 2, AppliedMigrations: 1, PendingMigrations: 1},
	}
	var buf bytes.Buffer
	cli := NewCLI(fm)
	cli.SetOutput(&buf)

	require.NoError(t, cli.RunStatus(context.Background()))
	out := buf.String()
	require.Contains(t, out, "Applied")
	require.Contains(t, out, "Pending")
	require.Contains(t, out, "Total: 2, Applied: 1, Pending: 1")
}
