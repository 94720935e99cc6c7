package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
	"github.com/energy-modelling-hub/water-value-database/internal/store"
	"github.com/energy-modelling-hub/water-value-database/internal/testutil"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

func TestMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "water_value_database.db")

	version, err := store.Migrate(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	// Running again on an up-to-date store is a no-op.
	version, err = store.Migrate(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	ds, err := store.LoadDataset(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, testutil.ScreeningColumns, ds.Screening.Columns)
	assert.Equal(t, testutil.ClassificationColumns, ds.Classification.Columns)
	assert.Equal(t, testutil.WaterValueColumns, ds.WaterValues.Columns)
	assert.Zero(t, ds.WaterValues.Len())
}

func TestOpen_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")

	_, err := store.Open(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStoreNotFound))
	assert.Contains(t, err.Error(), "store file not found")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, path, appErr.Context["path"])
}

func TestReadTable(t *testing.T) {
	ctx := context.Background()
	path := testutil.WriteStore(t, t.TempDir(), testutil.SampleDataset())

	s, err := store.Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())

	screening, err := s.ReadTable(ctx, domain.TableScreening)
	require.NoError(t, err)
	require.Equal(t, 6, screening.Len())

	ids, err := screening.Column(domain.ColID)
	require.NoError(t, err)
	var got []string
	for _, v := range ids {
		got = append(got, v.String)
	}
	assert.Equal(t, []string{"S1", "S2", "S3", "S4", "S5", "S6"}, got, "rowid order")

	years, err := screening.Column(domain.ColYear)
	require.NoError(t, err)
	assert.Equal(t, domain.Text("1998"), years[0])
	assert.Equal(t, domain.Text("2021"), years[2], "integer affinity stores 2021.0 as 2021")
	assert.Equal(t, domain.Text("n/a"), years[3], "text survives integer affinity")
	assert.Equal(t, domain.Null(), years[5])

	reasons, err := screening.Column(domain.ColExclusionReason)
	require.NoError(t, err)
	assert.Equal(t, domain.Text(""), reasons[0], "empty string is not NULL")

	values, err := s.ReadTable(ctx, domain.TableWaterValues)
	require.NoError(t, err)
	factors, err := values.Column(domain.ColConversionFactor)
	require.NoError(t, err)
	assert.Equal(t, domain.Text("0.2"), factors[2])
	assert.Equal(t, domain.Text("1"), factors[0])

	medians, err := values.Column(domain.ColWVMedianRaw)
	require.NoError(t, err)
	assert.Equal(t, domain.Text("9"), medians[0])
	assert.False(t, medians[1].Valid)
}

func TestReadTable_UnknownTable(t *testing.T) {
	ctx := context.Background()
	path := testutil.WriteStore(t, t.TempDir(), testutil.SampleDataset())

	s, err := store.Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	for _, name := range []string{"sqlite_master", "screening; DROP TABLE screening", ""} {
		_, err := s.ReadTable(ctx, name)
		assert.True(t, errors.Is(err, apperrors.ErrUnknownTable), "table %q", name)
	}
}

func TestReadDataset(t *testing.T) {
	ctx := context.Background()
	sample := testutil.SampleDataset()
	path := testutil.WriteStore(t, t.TempDir(), sample)

	ds, err := store.LoadDataset(ctx, path)
	require.NoError(t, err)

	for _, name := range domain.TableNames {
		assert.Equal(t, sample.Table(name).Len(), ds.Table(name).Len(), name)
	}
}

func TestReadDataset_Cancelled(t *testing.T) {
	path := testutil.WriteStore(t, t.TempDir(), testutil.SampleDataset())

	s, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ReadDataset(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
