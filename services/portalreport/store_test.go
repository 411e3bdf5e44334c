package portalreport

import (
	"context"
	"testing"

	"calfscrape/lib/scrapers/calf"
	"calfscrape/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestStoreSaveAndList(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:portalreport")()
	ctx := context.Background()

	store, err := OpenStore(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	identity := calf.Identity{Type: calf.IdentitySocio, Number: "123456"}
	report := testReport()

	require.NoError(t, store.SaveRun(ctx, identity, report))

	runs, err := store.ListRuns(ctx, identity)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "PEREZ JUAN CARLOS", runs[0].DisplayName)
	require.Equal(t, 2, runs[0].AccountCount)
	require.Equal(t, 1, runs[0].PendingInvoices)
	require.Equal(t, "52630.39", runs[0].PendingTotal)
	require.Equal(t, report.GeneratedAt.Unix(), runs[0].GeneratedAt)
}

func TestStoreListScopedToIdentity(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:portalreport")()
	ctx := context.Background()

	store, err := OpenStore(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveRun(ctx,
		calf.Identity{Type: calf.IdentitySocio, Number: "123456"}, testReport()))

	runs, err := store.ListRuns(ctx, calf.Identity{Type: calf.IdentityDNI, Number: "123456"})
	require.NoError(t, err)
	require.Empty(t, runs)
}
