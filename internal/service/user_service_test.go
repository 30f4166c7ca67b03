package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"filedesk/internal/domain"
	"filedesk/internal/repository"
	"filedesk/internal/testutils"
)

// TestConcurrentRegistrationSingleAdmin: при любом переплетении
// одновременных регистраций администратором становится ровно один
// пользователь.
func TestConcurrentRegistrationSingleAdmin(t *testing.T) {
	db := testutils.SetupTestDB(t)
	logger := zap.NewNop()

	userSvc := NewUserService(
		repository.NewUserRepository(db),
		repository.NewPreferencesRepository(db),
		"0123456789abcdef0123456789abcdef",
		30*time.Minute,
		logger,
	)

	const n = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	users := make([]*domain.User, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			users[i], errs[i] = userSvc.Register(context.Background(),
				fmt.Sprintf("user%02d", i), "secret")
		}(i)
	}
	close(start)
	wg.Wait()

	admins := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if users[i].IsAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins, "exactly one concurrent registration may become admin")
}
