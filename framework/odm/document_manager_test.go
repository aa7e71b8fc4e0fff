package odm_test

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/mapping"
	"github.com/km-arc/go-persistence/framework/odm"
)

func staticDriver(t *testing.T, classes ...*mapping.ClassMetadata) mapping.Driver {
	t.Helper()
	reg := mapping.NewRegistry(afero.NewMemMapFs())
	for _, md := range classes {
		require.NoError(t, reg.Register(md))
	}
	return mapping.NewStaticDriver(reg)
}

func TestNew_ParsesConnectionString(t *testing.T) {
	dm, err := odm.New("mongodb://db1.example.com:27017,db2.example.com/shop", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"db1.example.com:27017", "db2.example.com"}, dm.Addrs())
	assert.Equal(t, "shop", dm.DatabaseName())
}

func TestNew_EmptyConnectionStringIsLocalhost(t *testing.T) {
	dm, err := odm.New("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost"}, dm.Addrs())
	assert.Equal(t, odm.DefaultDatabase, dm.DatabaseName())
}

func TestNew_DefaultDBOverridesURL(t *testing.T) {
	dm, err := odm.New("mongodb://localhost/shop", &odm.Configuration{DefaultDB: "shop_test"})
	require.NoError(t, err)
	assert.Equal(t, "shop_test", dm.DatabaseName())
}

func TestNew_InvalidConnectionString(t *testing.T) {
	_, err := odm.New("mongodb://localhost/?bogusOption=1", nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestDocumentManager_ClassMetadata(t *testing.T) {
	ctx := context.Background()
	pool, err := cache.NewArrayPool(cache.ArrayOptions{})
	require.NoError(t, err)

	dm, err := odm.New("localhost", &odm.Configuration{
		DocumentNamespaces: map[string]string{"Doc": "app.document"},
		MetadataCache:      pool,
		MetadataDriver: staticDriver(t,
			&mapping.ClassMetadata{Name: "app.document.Article"},
			&mapping.ClassMetadata{Name: "app.document.Tag", Collection: "tags"},
		),
	})
	require.NoError(t, err)

	md, err := dm.ClassMetadata(ctx, "Doc:Article")
	require.NoError(t, err)
	assert.Equal(t, "Article", md.Collection)

	md, err = dm.ClassMetadata(ctx, "app.document.Tag")
	require.NoError(t, err)
	assert.Equal(t, "tags", md.Collection)

	_, hit, err := pool.Get(ctx, "metadata:app.document.Article")
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = dm.ClassMetadata(ctx, "app.document.Missing")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestDocumentManager_CloseWithoutDial(t *testing.T) {
	dm, err := odm.New("localhost", nil)
	require.NoError(t, err)
	require.NoError(t, dm.Close())

	_, err = dm.Session(context.Background())
	assert.Error(t, err)
}

func TestFactories(t *testing.T) {
	r := odm.NewFactories()
	r.Register("default", odm.New)

	f, err := r.Lookup("default")
	require.NoError(t, err)
	dm, err := f("localhost", nil)
	require.NoError(t, err)
	assert.NotNil(t, dm)

	_, err = r.Lookup("doctrine")
	assert.True(t, errors.Is(err, errors.NotValid))
}
