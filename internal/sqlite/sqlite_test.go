package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orthocare/orthocare/internal/auth"
	"github.com/orthocare/orthocare/internal/patients"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func record(name, diagnosis, date string) patients.CreateInput {
	return patients.CreateInput{
		PatientName: name,
		Age:         40,
		Date:        date,
		Diagnosis:   diagnosis,
		Hospital:    "Riverside Medical Center",
	}
}

func TestPatientCRUD(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := record("  John Carter ", "Rotator cuff tear", "2025-03-04")
	in.PlannedFollowUps.First = "In 2 weeks"
	id, err := db.Create(ctx, in)
	require.NoError(t, err)

	p, err := db.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "John Carter", p.PatientName)
	assert.Equal(t, "2025-03-04", p.Date)
	assert.Equal(t, "In 2 weeks", p.PlannedFollowUps.First)
	assert.False(t, p.CreatedAt.IsZero())

	proc := "Arthroscopic repair"
	second := "In 6 weeks"
	updated, err := db.Update(ctx, id, patients.UpdateInput{
		Procedure:        &proc,
		PlannedFollowUps: &patients.FollowUpsPatch{Second: &second},
	})
	require.NoError(t, err)
	assert.Equal(t, proc, updated.Procedure)
	assert.Equal(t, "In 2 weeks", updated.PlannedFollowUps.First)

	p, err = db.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, second, p.PlannedFollowUps.Second)

	require.NoError(t, db.Delete(ctx, id))
	_, err = db.GetByID(ctx, id)
	assert.ErrorIs(t, err, patients.ErrNotFound)
	assert.ErrorIs(t, db.Delete(ctx, id), patients.ErrNotFound)
	_, err = db.Update(ctx, id, patients.UpdateInput{Procedure: &proc})
	assert.ErrorIs(t, err, patients.ErrNotFound)
}

func TestCreateRejectsInvalid(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Create(context.Background(), patients.CreateInput{PatientName: "x", Age: 200})
	var ve *patients.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "age")
	assert.Contains(t, ve.Fields, "diagnosis")

	all, err := db.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGetAllOrdersByDate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var n int
	db.now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Minute) }

	ids := map[string]string{}
	for _, r := range []struct{ name, date string }{
		{"undated one", ""},
		{"old", "2024-01-10"},
		{"undated two", ""},
		{"newest", "2025-06-01"},
		{"middle", "2024-12-31"},
	} {
		id, err := db.Create(ctx, record(r.name, "Fracture", r.date))
		require.NoError(t, err)
		ids[id] = r.name
	}

	all, err := db.GetAll(ctx)
	require.NoError(t, err)
	var got []string
	for _, p := range all {
		got = append(got, ids[p.ID])
	}
	assert.Equal(t, []string{"newest", "middle", "old", "undated one", "undated two"}, got)
}

func TestSearch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.Create(ctx, record("John Carter", "Rotator cuff tear", "2025-01-01"))
	require.NoError(t, err)
	k := record("Ana Lopez", "Distal radius fracture", "")
	k.KWireRemoval = "At 4 weeks"
	_, err = db.Create(ctx, k)
	require.NoError(t, err)

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"   ", 2},
		{"CARTER", 1},
		{"radius", 1},
		{"riverside", 2},
		{"40", 2},
		{"4 weeks", 1},
		{"tibia", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := db.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestAuthStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := auth.NewService(db, time.Hour, zerolog.Nop())

	created, err := svc.EnsureUser(ctx, "staff@clinic.test", "pw", "Staff")
	require.NoError(t, err)
	assert.True(t, created)
	assert.ErrorIs(t, db.CreateUser(ctx, auth.User{ID: "other", Email: "staff@clinic.test", PasswordHash: "x"}), auth.ErrUserExists)

	g, err := svc.SignIn(ctx, "staff@clinic.test", "pw")
	require.NoError(t, err)
	u, err := svc.CurrentUser(ctx, g.Token)
	require.NoError(t, err)
	assert.Equal(t, "Staff", u.Name)

	n, err := db.DeleteExpiredSessions(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = svc.CurrentUser(ctx, g.Token)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}
