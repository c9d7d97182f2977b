// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store/memory"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/vectorrepo"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// gatedEngine holds OpenPartition for one partition until release is closed.
type gatedEngine struct {
	*memory.Engine
	gated   string
	entered chan struct{}
	release chan struct{}
	openErr error
}

func (g *gatedEngine) OpenPartition(ctx context.Context, name string) (store.Partition, error) {
	if name == g.gated {
		close(g.entered)
		<-g.release
		if g.openErr != nil {
			return nil, g.openErr
		}
	}
	return g.Engine.OpenPartition(ctx, name)
}

func newGatedRepo(t *testing.T, eng store.Engine) *vectorrepo.Repository {
	t.Helper()
	repo, err := vectorrepo.New(eng,
		vectorrepo.WithVerifyDelay(0),
		vectorrepo.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		vectorrepo.WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	return repo
}

func TestResolvePartition_SlowOpenDoesNotBlockOtherLibraries(t *testing.T) {
	slow := testLibrary()
	slow.ID, slow.Partition = "lib-slow", "vectors__slow"
	fast := testLibrary()
	fast.ID, fast.Partition = "lib-fast", "vectors__fast"

	eng := &gatedEngine{
		Engine:  memory.New(),
		gated:   slow.Partition,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	repo := newGatedRepo(t, eng)

	type result struct {
		part store.Partition
		err  error
	}
	slowDone := make(chan result, 1)
	go func() {
		part, err := repo.ResolvePartition(context.Background(), slow)
		slowDone <- result{part, err}
	}()
	<-eng.entered

	fastDone := make(chan result, 1)
	go func() {
		part, err := repo.ResolvePartition(context.Background(), fast)
		fastDone <- result{part, err}
	}()
	select {
	case res := <-fastDone:
		require.NoError(t, res.err)
		assert.Equal(t, fast.Partition, res.part.Name())
	case <-time.After(2 * time.Second):
		close(eng.release)
		t.Fatal("resolving an unrelated library waited for a pending open")
	}

	close(eng.release)
	res := <-slowDone
	require.NoError(t, res.err)
	assert.Equal(t, slow.Partition, res.part.Name())

	again, err := repo.ResolvePartition(context.Background(), slow)
	require.NoError(t, err)
	assert.Same(t, res.part, again)
}

func TestResolvePartition_OpenFailureIsNotCached(t *testing.T) {
	lib := testLibrary()
	boom := errors.New("engine unavailable")
	eng := &gatedEngine{
		Engine:  memory.New(),
		gated:   lib.Partition,
		entered: make(chan struct{}),
		release: make(chan struct{}),
		openErr: boom,
	}
	close(eng.release)
	repo := newGatedRepo(t, eng)

	_, err := repo.ResolvePartition(context.Background(), lib)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, scouterr.CodeRepoPartitionOpenFailed, scouterr.CodeOf(err))

	eng.gated = ""
	part, err := repo.ResolvePartition(context.Background(), lib)
	require.NoError(t, err)
	assert.Equal(t, lib.Partition, part.Name())
}
