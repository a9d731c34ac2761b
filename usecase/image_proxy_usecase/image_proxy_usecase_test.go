package image_proxy_usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"imgproxy/domain"
	"imgproxy/mocks"
	"imgproxy/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSourceURL = "http://artsco202525.speedgabia.com/a.jpg"

type testDeps struct {
	fetch      *mocks.MockImageFetchPort
	processing *mocks.MockImageProcessingPort
	cache      *mocks.MockImageProxyCachePort
	allowlist  *mocks.MockDomainAllowlistPort
	limiter    *mocks.MockClientRateLimiterPort
}

func newTestUsecase(t *testing.T, now time.Time) (*ImageProxyUsecase, testDeps) {
	ctrl := gomock.NewController(t)
	deps := testDeps{
		fetch:      mocks.NewMockImageFetchPort(ctrl),
		processing: mocks.NewMockImageProcessingPort(ctrl),
		cache:      mocks.NewMockImageProxyCachePort(ctrl),
		allowlist:  mocks.NewMockDomainAllowlistPort(ctrl),
		limiter:    mocks.NewMockClientRateLimiterPort(ctrl),
	}
	u := NewImageProxyUsecase(deps.fetch, deps.processing, deps.cache, deps.allowlist, deps.limiter, 1024, domain.ImageProxyCacheTTL).
		WithClock(func() time.Time { return now })
	return u, deps
}

func transformResult() *domain.TransformResult {
	return &domain.TransformResult{
		Data:           []byte("processed"),
		ContentType:    "image/webp",
		OriginalFormat: domain.FormatJPEG,
		OutputFormat:   domain.FormatWebP,
		Width:          100,
		Height:         50,
		SizeBytes:      9,
		ETag:           "abc123",
	}
}

func TestImageProxyUsecase_ProxyImage_MissThenStore(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u, deps := newTestUsecase(t, now)
	params := domain.TransformParams{Width: 100, Format: "webp"}
	key := domain.BuildCacheKey(testSourceURL, params)

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), "artsco202525.speedgabia.com").Return(true, nil)
	deps.limiter.EXPECT().Admit("10.0.0.1", now).Return(true)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), key).Return(nil, nil)
	deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *url.URL, opts *domain.ImageFetchOptions) (*domain.ImageFetchResult, error) {
			assert.Equal(t, testSourceURL, u.String())
			assert.Equal(t, 1024, opts.MaxSize)
			return &domain.ImageFetchResult{Data: []byte("raw"), Size: 3}, nil
		})
	deps.processing.EXPECT().ProcessImage(gomock.Any(), []byte("raw"), params).Return(transformResult(), nil)
	deps.cache.EXPECT().SaveCachedImage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entry *domain.ImageProxyCacheEntry) error {
			assert.Equal(t, key, entry.Key)
			assert.Equal(t, now, entry.CreatedAt)
			assert.Equal(t, now.Add(domain.ImageProxyCacheTTL), entry.ExpiresAt)
			assert.Equal(t, domain.FormatWebP, entry.OutputFormat)
			return nil
		})

	result, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: testSourceURL, Params: params, ClientID: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, domain.CacheMiss, result.CacheStatus)
	assert.Equal(t, "image/webp", result.ContentType)
	assert.Equal(t, []byte("processed"), result.Data)
	assert.Equal(t, domain.FormatJPEG, result.OriginalFormat)
}

func TestImageProxyUsecase_ProxyImage_CacheHit(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u, deps := newTestUsecase(t, now)
	key := domain.BuildCacheKey(testSourceURL, domain.TransformParams{})

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil)
	deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), key).Return(&domain.ImageProxyCacheEntry{
		Key:         key,
		Data:        []byte("cached"),
		ContentType: "image/jpeg",
		ExpiresAt:   now.Add(time.Hour),
	}, nil)

	result, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
	require.NoError(t, err)
	assert.Equal(t, domain.CacheHit, result.CacheStatus)
	assert.Equal(t, []byte("cached"), result.Data)
}

func TestImageProxyUsecase_ProxyImage_ExpiredEntryIsMiss(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u, deps := newTestUsecase(t, now)

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil)
	deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), gomock.Any()).Return(&domain.ImageProxyCacheEntry{
		Data:      []byte("stale"),
		ExpiresAt: now,
	}, nil)
	deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.ImageFetchResult{Data: []byte("raw")}, nil)
	deps.processing.EXPECT().ProcessImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(transformResult(), nil)
	deps.cache.EXPECT().SaveCachedImage(gomock.Any(), gomock.Any()).Return(nil)

	result, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
	require.NoError(t, err)
	assert.Equal(t, domain.CacheMiss, result.CacheStatus)
	assert.Equal(t, []byte("processed"), result.Data)
}

func TestImageProxyUsecase_ProxyImage_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		sourceURL string
		status    int
		message   string
	}{
		{"missing url", "", http.StatusBadRequest, "Missing url parameter"},
		{"bad scheme", "ftp://artsco202525.speedgabia.com/a.jpg", http.StatusBadRequest, "Invalid url parameter"},
		{"no host", "http:///a.jpg", http.StatusBadRequest, "Invalid url parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, _ := newTestUsecase(t, time.Now())

			_, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: tt.sourceURL, ClientID: "c"})
			require.Error(t, err)
			appErr, ok := errors.AsAppContextError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, appErr.HTTPStatusCode())
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestImageProxyUsecase_ProxyImage_DomainNotAllowed(t *testing.T) {
	u, deps := newTestUsecase(t, time.Now())
	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), "evil.example.com").Return(false, nil)

	_, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: "http://evil.example.com/a.jpg", ClientID: "c"})
	require.Error(t, err)
	assert.True(t, errors.IsDomainNotAllowed(err))
}

func TestImageProxyUsecase_ProxyImage_RateLimited(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u, deps := newTestUsecase(t, now)

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil)
	deps.limiter.EXPECT().Admit("c", now).Return(false)
	deps.limiter.EXPECT().RetryAfter("c", now).Return(1500 * time.Millisecond)

	_, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
	require.Error(t, err)
	assert.True(t, errors.IsRateLimitError(err))

	appErr, ok := errors.AsAppContextError(err)
	require.True(t, ok)
	assert.Equal(t, 2, appErr.Context[RetryAfterContextKey])
}

func TestImageProxyUsecase_ProxyImage_FetchFailure(t *testing.T) {
	u, deps := newTestUsecase(t, time.Now())

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil)
	deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), gomock.Any()).Return(nil, nil)
	deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("connection refused"))

	_, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
	require.Error(t, err)
	assert.True(t, errors.IsExternalServiceError(err))
}

func TestImageProxyUsecase_ProxyImage_ProcessingFailureNotCached(t *testing.T) {
	u, deps := newTestUsecase(t, time.Now())

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil)
	deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), gomock.Any()).Return(nil, nil)
	deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.ImageFetchResult{Data: []byte("garbage")}, nil)
	deps.processing.EXPECT().ProcessImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("decode failed"))
	deps.cache.EXPECT().SaveCachedImage(gomock.Any(), gomock.Any()).Times(0)

	_, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
	require.Error(t, err)
	assert.True(t, errors.IsImageProcessingError(err))

	appErr, ok := errors.AsAppContextError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatusCode())
}

func TestImageProxyUsecase_ProxyImage_CacheErrorsAreBestEffort(t *testing.T) {
	u, deps := newTestUsecase(t, time.Now())

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil)
	deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("cache down"))
	deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.ImageFetchResult{Data: []byte("raw")}, nil)
	deps.processing.EXPECT().ProcessImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(transformResult(), nil)
	deps.cache.EXPECT().SaveCachedImage(gomock.Any(), gomock.Any()).Return(fmt.Errorf("cache down"))

	result, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
	require.NoError(t, err)
	assert.Equal(t, domain.CacheMiss, result.CacheStatus)
}

func TestImageProxyUsecase_ProxyImage_ConcurrentMissesCollapse(t *testing.T) {
	u, deps := newTestUsecase(t, time.Now())
	const callers = 8

	release := make(chan struct{})
	var fetches atomic.Int32

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil).Times(callers)
	deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true).Times(callers)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), gomock.Any()).Return(nil, nil).Times(callers)
	deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *url.URL, *domain.ImageFetchOptions) (*domain.ImageFetchResult, error) {
			fetches.Add(1)
			<-release
			return &domain.ImageFetchResult{Data: []byte("raw")}, nil
		}).MinTimes(1).MaxTimes(callers)
	deps.processing.EXPECT().ProcessImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(transformResult(), nil).MinTimes(1).MaxTimes(callers)
	deps.cache.EXPECT().SaveCachedImage(gomock.Any(), gomock.Any()).Return(nil).MinTimes(1).MaxTimes(callers)

	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			started.Done()
			result, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
			assert.NoError(t, err)
			if result != nil {
				assert.Equal(t, []byte("processed"), result.Data)
			}
		}()
	}
	started.Wait()
	// Give the callers time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Less(t, int(fetches.Load()), callers)
}

func TestImageProxyUsecase_ProxyImage_CallerCancelled(t *testing.T) {
	u, deps := newTestUsecase(t, time.Now())
	release := make(chan struct{})
	defer close(release)

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil)
	deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), gomock.Any()).Return(nil, nil)
	deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *url.URL, *domain.ImageFetchOptions) (*domain.ImageFetchResult, error) {
			<-release
			return nil, fmt.Errorf("aborted")
		}).AnyTimes()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := u.ProxyImage(ctx, domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
	require.Error(t, err)
	assert.True(t, errors.IsTimeoutError(err))
}

func TestImageProxyUsecase_ProxyImage_PipelinePanicBecomesError(t *testing.T) {
	tests := []struct {
		name  string
		setup func(deps testDeps)
	}{
		{
			name: "fetch panics",
			setup: func(deps testDeps) {
				deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(context.Context, *url.URL, *domain.ImageFetchOptions) (*domain.ImageFetchResult, error) {
						panic("decoder blew up")
					})
			},
		},
		{
			name: "processing panics",
			setup: func(deps testDeps) {
				deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.ImageFetchResult{Data: []byte("raw")}, nil)
				deps.processing.EXPECT().ProcessImage(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(context.Context, []byte, domain.TransformParams) (*domain.TransformResult, error) {
						panic("nil frame")
					})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, deps := newTestUsecase(t, time.Now())
			deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil)
			deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true)
			deps.cache.EXPECT().GetCachedImage(gomock.Any(), gomock.Any()).Return(nil, nil)
			deps.cache.EXPECT().SaveCachedImage(gomock.Any(), gomock.Any()).Times(0)
			tt.setup(deps)

			_, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
			require.Error(t, err)

			appErr, ok := errors.AsAppContextError(err)
			require.True(t, ok)
			assert.Equal(t, errors.CodeUnknown, appErr.Code)
			assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatusCode())
		})
	}
}

func TestImageProxyUsecase_ProxyImage_FlightHasDeadline(t *testing.T) {
	u, deps := newTestUsecase(t, time.Now())
	u.WithFlightTimeout(2 * time.Second)

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil)
	deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), gomock.Any()).Return(nil, nil)
	deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *url.URL, _ *domain.ImageFetchOptions) (*domain.ImageFetchResult, error) {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok, "fetch context should carry a deadline")
			assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
			return &domain.ImageFetchResult{Data: []byte("raw")}, nil
		})
	deps.processing.EXPECT().ProcessImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(transformResult(), nil)
	deps.cache.EXPECT().SaveCachedImage(gomock.Any(), gomock.Any()).Return(nil)

	_, err := u.ProxyImage(context.Background(), domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
	require.NoError(t, err)
}

func TestImageProxyUsecase_ProxyImage_AbandonedFlightIsCancelled(t *testing.T) {
	u, deps := newTestUsecase(t, time.Now())
	cancelled := make(chan bool, 1)

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil)
	deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), gomock.Any()).Return(nil, nil)
	deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *url.URL, _ *domain.ImageFetchOptions) (*domain.ImageFetchResult, error) {
			select {
			case <-ctx.Done():
				cancelled <- true
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
				cancelled <- false
				return nil, fmt.Errorf("not cancelled")
			}
		})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := u.ProxyImage(ctx, domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
	require.Error(t, err)
	assert.True(t, errors.IsTimeoutError(err))

	select {
	case got := <-cancelled:
		assert.True(t, got, "fetch should be cancelled once its only caller left")
	case <-time.After(time.Second):
		t.Fatal("fetch was not cancelled after its only caller left")
	}

	u.mu.Lock()
	assert.Empty(t, u.inflight)
	u.mu.Unlock()
}

func TestImageProxyUsecase_ProxyImage_FlightSurvivesWhileOthersWait(t *testing.T) {
	u, deps := newTestUsecase(t, time.Now())
	key := domain.BuildCacheKey(testSourceURL, domain.TransformParams{})

	started := make(chan context.Context, 1)
	release := make(chan struct{})

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)
	deps.limiter.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(true).Times(2)
	deps.cache.EXPECT().GetCachedImage(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	deps.fetch.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *url.URL, _ *domain.ImageFetchOptions) (*domain.ImageFetchResult, error) {
			started <- ctx
			<-release
			return &domain.ImageFetchResult{Data: []byte("raw")}, nil
		})
	deps.processing.EXPECT().ProcessImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(transformResult(), nil)
	deps.cache.EXPECT().SaveCachedImage(gomock.Any(), gomock.Any()).Return(nil)

	req := domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := u.ProxyImage(ctxA, req)
		errA <- err
	}()
	fetchCtx := <-started

	type outcome struct {
		result *domain.ImageProxyResult
		err    error
	}
	doneB := make(chan outcome, 1)
	go func() {
		result, err := u.ProxyImage(context.Background(), req)
		doneB <- outcome{result, err}
	}()

	require.Eventually(t, func() bool {
		u.mu.Lock()
		defer u.mu.Unlock()
		f := u.inflight[key]
		return f != nil && f.waiters == 2
	}, time.Second, 5*time.Millisecond)

	cancelA()
	assert.True(t, errors.IsTimeoutError(<-errA))
	assert.NoError(t, fetchCtx.Err(), "shared fetch must keep running while another caller waits")

	close(release)
	b := <-doneB
	require.NoError(t, b.err)
	assert.Equal(t, []byte("processed"), b.result.Data)
}

func TestImageProxyUsecase_ProxyImage_DomainCheckCancelled(t *testing.T) {
	u, deps := newTestUsecase(t, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deps.allowlist.EXPECT().IsAllowedImageDomain(gomock.Any(), gomock.Any()).Return(false, context.Canceled)

	_, err := u.ProxyImage(ctx, domain.ImageProxyRequest{SourceURL: testSourceURL, ClientID: "c"})
	require.Error(t, err)
	assert.True(t, errors.IsTimeoutError(err))

	appErr, ok := errors.AsAppContextError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.HTTPStatusCode())
}
