package imaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-http-kit/httpkit"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheExpiration = 30 * time.Minute
	cacheCleanupInterval   = 1 * time.Hour
	defaultFetchTimeout    = 30 * time.Second
	maxReferenceBytes      = 10 << 20
)

// FetchedImage は URL から取得した参照画像です。
type FetchedImage struct {
	Data     []byte
	MimeType string
}

// ReferenceFetcher は参照画像 URL を取得します。結果はキャッシュし、同一 URL の同時取得は 1 回にまとめます。
// URL は利用者の入力なので、既定のクライアントは内部ネットワーク宛ての取得を拒否します。
type ReferenceFetcher struct {
	httpClient httpkit.Requester
	cache      *cache.Cache
	group      singleflight.Group
}

// NewReferenceFetcher は ReferenceFetcher を返します。
// httpClient が nil の場合は SSRF 対策付きの httpkit クライアントを使います。
func NewReferenceFetcher(httpClient httpkit.Requester) *ReferenceFetcher {
	if httpClient == nil {
		httpClient = httpkit.New(defaultFetchTimeout)
	}
	return &ReferenceFetcher{
		httpClient: httpClient,
		cache:      cache.New(defaultCacheExpiration, cacheCleanupInterval),
	}
}
// Fetch は URL の画像を返します。
func (f *ReferenceFetcher) Fetch(ctx context.Context, url string) (FetchedImage, error) {
	if v, ok := f.cache.Get(url); ok {
		if img, ok := v.(FetchedImage); ok {
			return img, nil
		}
	}

	val, err, _ := f.group.Do(url, func() (interface{}, error) {
		if v, ok := f.cache.Get(url); ok {
			return v, nil
		}
		img, err := f.download(ctx, url)
		if err != nil {
			return nil, err
		}
		f.cache.SetDefault(url, img)
		return img, nil
	})
	if err != nil {
		return FetchedImage{}, err
	}

	img, ok := val.(FetchedImage)
	if !ok {
		return FetchedImage{}, fmt.Errorf("unexpected return type from singleflight: %T", val)
	}
	return img, nil
}

func (f *ReferenceFetcher) download(ctx context.Context, url string) (FetchedImage, error) {
	data, err := f.httpClient.FetchBytes(ctx, url)
	if err != nil {
		return FetchedImage{}, fmt.Errorf("参照画像の取得に失敗しました (url: %s): %w", url, err)
	}
	if len(data) > maxReferenceBytes {
		return FetchedImage{}, errors.New("参照画像が大きすぎます")
	}
	return FetchedImage{Data: data, MimeType: http.DetectContentType(data)}, nil
}
