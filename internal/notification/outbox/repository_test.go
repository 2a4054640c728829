package outbox

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestStatusIsTerminal(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusPending:               false,
		StatusEnqueued:              false,
		StatusDelivering:            false,
		StatusCompleted:             true,
		StatusCompletedWithFailures: true,
	} {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestUnconfiguredRepositoryFails(t *testing.T) {
	var repo *Repository
	if _, err := repo.Insert(context.Background(), InsertParams{InterventionID: uuid.New(), Kind: KindSchedulingEmail}); err == nil {
		t.Fatal("expected error from nil repository")
	}
	if err := repo.MarkCompleted(context.Background(), uuid.New(), 1, 0, nil); err == nil {
		t.Fatal("expected error from nil repository")
	}
}

func TestDeliveryClaimsNeverReopenStartedJobs(t *testing.T) {
	delivering := strings.ToLower(markDeliveringQuery)
	require.Contains(t, delivering, "status in ('pending', 'enqueued')")
	require.NotContains(t, delivering, "'delivering')")

	pending := strings.ToLower(markPendingQuery)
	require.Contains(t, pending, "status = 'enqueued'")
	require.NotContains(t, pending, "delivering")
}

func newMockRepository(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewWithDB(mock)
}

func TestMarkDeliveringRefusesJobAlreadyDelivering(t *testing.T) {
	mock, repo := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(markDeliveringQuery)).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.MarkDelivering(context.Background(), id)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverStaleRequeuesEnqueuedAndClosesDelivering(t *testing.T) {
	mock, repo := newMockRepository(t)
	cutoff := time.Date(2025, 3, 10, 8, 45, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(requeueStaleQuery)).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(regexp.QuoteMeta(closeInterruptedQuery)).
		WithArgs(cutoff, InterruptedDeliveryError).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	requeued, closed, err := repo.RecoverStale(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(2), requeued)
	require.Equal(t, int64(1), closed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverStaleStopsOnRequeueFailure(t *testing.T) {
	mock, repo := newMockRepository(t)
	cutoff := time.Date(2025, 3, 10, 8, 45, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(requeueStaleQuery)).
		WithArgs(cutoff).
		WillReturnError(errors.New("connection reset"))

	_, _, err := repo.RecoverStale(context.Background(), cutoff)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
