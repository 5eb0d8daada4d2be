package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/db"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
)

func run(args ...string) (string, error) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "mhbctl dev")
	assert.Contains(t, out, "commit: none")
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "mhbctl 1.0.0")
	assert.Contains(t, out, "built: 2026-01-01")
}

func TestRootCmdHasSubcommands(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"version", "migrate", "sweep", "dispute", "webhooks"} {
		assert.Contains(t, names, want)
	}
}

func TestDisputeResolve_RequiresFlags(t *testing.T) {
	_, err := run("dispute", "resolve", uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestDisputeResolve_RejectsBadIDs(t *testing.T) {
	_, err := run("dispute", "resolve", "nope", "--admin", uuid.NewString(), "--outcome", "canceled", "--resolution", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispute id")

	_, err = run("dispute", "resolve", uuid.NewString(), "--admin", "nope", "--outcome", "canceled", "--resolution", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--admin")
}

func TestWebhooksFailed_LimitBounds(t *testing.T) {
	_, err := run("webhooks", "failed", "--limit", "0")
	require.Error(t, err)
	_, err = run("webhooks", "failed", "-n", "501")
	require.Error(t, err)
}

func TestPrintMigrations(t *testing.T) {
	buf := new(bytes.Buffer)
	printMigrations(buf, []db.Migration{{Name: "0001_init.sql", Applied: true}, {Name: "0002_disputes.sql"}})

	out := buf.String()
	assert.Contains(t, out, "applied  0001_init.sql")
	assert.Contains(t, out, "pending  0002_disputes.sql")
	assert.Contains(t, out, "2 migration(s), 1 pending")

	buf.Reset()
	printMigrations(buf, nil)
	assert.Equal(t, "No migrations found.\n", buf.String())
}

func TestPrintWebhookEvents(t *testing.T) {
	buf := new(bytes.Buffer)
	printWebhookEvents(buf, []models.WebhookEvent{{
		StripeEventID: "evt_1",
		EventType:     "payment_intent.succeeded",
		Attempts:      3,
		Error:         "agreement not found",
		CreatedAt:     time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
	}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "EVENT"))
	assert.Contains(t, lines[1], "evt_1")
	assert.Contains(t, lines[1], "2026-04-02 09:30")
	assert.Contains(t, lines[1], "agreement not found")
}
