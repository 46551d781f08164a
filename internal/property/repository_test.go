package property

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWithDetails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &Repository{pool: mock}
	id := uuid.New()
	ownerID := uuid.New()
	availability := []byte(`[{"day":"Monday","startTime":"14:00","endTime":"17:00"}]`)

	mock.ExpectQuery("SELECT id, title, address, city, owner_id, agent_id, availability").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "address", "city", "owner_id", "agent_id", "availability"}).
			AddRow(id, "Sunny flat", "12 Main St", "Lisbon", ownerID, (*uuid.UUID)(nil), availability))

	p, err := repo.GetWithDetails(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Sunny flat", p.Title)
	require.Len(t, p.Availability, 1)
	assert.Equal(t, "Monday", p.Availability[0].Day)
	assert.Equal(t, "14:00", p.Availability[0].StartTime)
	assert.True(t, p.HasAvailabilityRules())
	assert.Equal(t, ownerID, p.ContactID())
}

func TestGetWithDetailsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &Repository{pool: mock}
	id := uuid.New()

	mock.ExpectQuery("SELECT id, title, address, city, owner_id, agent_id, availability").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetWithDetails(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByRef(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &Repository{pool: mock}
	id := uuid.New()
	ref := strings.ReplaceAll(id.String(), "-", "")[:8]

	mock.ExpectQuery(`SELECT id FROM properties`).
		WithArgs(ref).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectQuery("SELECT id, title, address, city, owner_id, agent_id, availability").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "address", "city", "owner_id", "agent_id", "availability"}).
			AddRow(id, "Sunny flat", "12 Main St", "Lisbon", uuid.New(), (*uuid.UUID)(nil), []byte(`[]`)))

	p, err := repo.FindByRef(context.Background(), strings.ToUpper(ref))
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByRefRejectsMalformedRef(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &Repository{pool: mock}
	for _, ref := range []string{"", "abc", "not-hex-at-all", "12345z", "'; DROP TABLE properties;--"} {
		_, err := repo.FindByRef(context.Background(), ref)
		assert.ErrorIs(t, err, ErrNotFound, "ref %q", ref)
	}
}

func TestFindByRefNoMatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &Repository{pool: mock}
	mock.ExpectQuery(`SELECT id FROM properties`).
		WithArgs("deadbeef").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.FindByRef(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContactIDPrefersAgent(t *testing.T) {
	ownerID := uuid.New()
	agentID := uuid.New()
	p := &Property{OwnerID: ownerID, AgentID: &agentID}
	assert.Equal(t, agentID, p.ContactID())
}

func TestRulesForWeekday(t *testing.T) {
	p := &Property{Availability: []AvailabilityRule{
		{Day: "Monday", StartTime: "14:00", EndTime: "17:00"},
		{Day: "monday", StartTime: "09:00", EndTime: "11:00"},
		{Day: "Friday", StartTime: "10:00", EndTime: "12:00"},
	}}
	assert.Len(t, p.RulesForWeekday("Monday"), 2)
	assert.Len(t, p.RulesForWeekday("Friday"), 1)
	assert.Empty(t, p.RulesForWeekday("Sunday"))
}
