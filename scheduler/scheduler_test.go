package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/Dosada05/tournament-bracket/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) Sweep(context.Context) ([]*services.ConsistencyReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []*services.ConsistencyReport{{TournamentID: "t-1", Consistent: true}}, nil
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("every tuesday", &fakeSweeper{}, nil)
	require.Error(t, err)
}

func TestRunSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	s, err := New("*/5 * * * *", sweeper, nil)
	require.NoError(t, err)

	s.RunSweep()
	assert.Equal(t, 1, sweeper.calls)

	sweeper.err = errors.New("db down")
	s.RunSweep()
	assert.Equal(t, 2, sweeper.calls)
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", &fakeSweeper{}, nil)
	require.NoError(t, err)
	s.Start()
	s.Stop(context.Background())
}
