package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicBalancesAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	clk := clock.NewMock(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	a := newProcess(t, mr, clk)
	b := newProcess(t, mr, clk)
	ctx := context.Background()

	u := &domain.User{Email: "shared@example.com", Name: "Shared", Coins: 1000, HasReceivedWelcomeBonus: true}
	require.NoError(t, a.users.Create(ctx, u))

	const n = 20
	ids := make([]string, n)
	for i := range ids {
		w := &domain.WithdrawalRequest{UserID: u.ID, Amount: 10, AmountPKR: 1}
		require.NoError(t, a.wds.Create(ctx, w))
		ids[i] = w.ID
	}

	// both processes refund into the same balance at once
	var wg sync.WaitGroup
	for i, p := range []*process{a, b} {
		wg.Add(1)
		go func(p *process, first int) {
			defer wg.Done()
			for j := first; j < n; j += 2 {
				r := p.ledger.ResolveWithdrawal(ctx, "admin", ids[j], domain.WithdrawalStatusRejected)
				assert.True(t, r.OK, r.Message)
				assert.Empty(t, r.Reason)
			}
		}(p, i)
	}
	wg.Wait()

	stored, err := b.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000+n*10), stored.Coins)
}

func TestBanInOneProcessLogsOutTheOther(t *testing.T) {
	mr := miniredis.RunT(t)
	clk := clock.NewMock(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	a := newProcess(t, mr, clk)
	b := newProcess(t, mr, clk)
	service.InitJWT("integration-secret", time.Hour)
	ctx := context.Background()

	res, err := a.handler.Auth.Register(ctx, service.RegisterInput{Name: "Bilal", Email: "bilal@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = a.handler.Auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)

	r := b.ledger.BanUser(ctx, "admin", res.User.ID)
	require.True(t, r.OK, r.Message)

	// the ban reaches a's session through the store's pub/sub relay
	require.Eventually(t, func() bool {
		_, err := a.handler.Auth.Authenticate(ctx, res.Token)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return a.manager.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, err = a.handler.Auth.Login(ctx, "bilal@example.com", "secret1")
	assert.ErrorIs(t, err, service.ErrAccountSuspended)
}
