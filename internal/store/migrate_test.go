// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMigrate implements migrateIface for unit tests.
type fakeMigrate struct {
	upErr      error
	downErr    error
	stepsErr   error
	version    uint
	dirty      bool
	versionErr error

	stepsCalled int
}

func (f *fakeMigrate) Up() error   { return f.upErr }
func (f *fakeMigrate) Down() error { return f.downErr }
func (f *fakeMigrate) Steps(n int) error {
	f.stepsCalled = n
	return f.stepsErr
}
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Close() (error, error)        { return nil, nil }

func TestMigrator_Up(t *testing.T) {
	t.Run("succeeds", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{}}
		assert.NoError(t, m.Up())
	})

	t.Run("treats ErrNoChange as success", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange}}
		assert.NoError(t, m.Up())
	})

	t.Run("wraps real failures", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{upErr: errors.New("db gone")}}
		err := m.Up()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db gone")
	})
}

func TestMigrator_Down(t *testing.T) {
	t.Run("treats ErrNoChange as success", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{downErr: migrate.ErrNoChange}}
		assert.NoError(t, m.Down())
	})

	t.Run("wraps real failures", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{downErr: errors.New("db gone")}}
		assert.Error(t, m.Down())
	})
}

func TestMigrator_Steps(t *testing.T) {
	fake := &fakeMigrate{}
	m := &Migrator{m: fake}

	require.NoError(t, m.Steps(2))
	assert.Equal(t, 2, fake.stepsCalled)
}

func TestMigrator_Version(t *testing.T) {
	t.Run("returns current version", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{version: 3}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(3), version)
		assert.False(t, dirty)
	})

	t.Run("nil version means zero, clean", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(0), version)
		assert.False(t, dirty)
	})
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	// Every up migration needs a matching down migration.
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case len(e.Name()) > 7 && e.Name()[len(e.Name())-7:] == ".up.sql":
			ups++
		case len(e.Name()) > 9 && e.Name()[len(e.Name())-9:] == ".down.sql":
			downs++
		}
	}
	assert.Equal(t, ups, downs, "up/down migration pairs must match")
	assert.Positive(t, ups)
}
