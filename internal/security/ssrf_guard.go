package security

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrResponseTooLarge は応答本文が上限サイズを超えた場合のエラー。
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// SSRFGuardService は外部URL取得時のSSRF防止機能のインターフェースを定義する。
// 管理画面からのコンボ画像URL登録で使用される。
type SSRFGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// プライベートIP、ループバック、リンクローカル、メタデータIPへの接続は
	// DNS解決後のIPアドレスに対して拒否される。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はリクエスト前にURLを静的に検証する。
	ValidateURL(rawURL string) error
}

// ErrBlockedURL はValidateURLが取得を拒否したURLに対して返す。
var ErrBlockedURL = errors.New("url not allowed")

// blockedPrefixes はnetipの分類メソッドでは判定できない予約済み範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"), // CGNAT
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("fc00::/7"),
}

// ssrfGuard はSSRFGuardServiceの実装。
type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを生成する。
// 接続はhttpsの443番ポートのみ許可する。
// safeurlはnet.DialerのControlフックでIPを検証するため、DNS再バインディングも防げる。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はDNS解決を伴わない静的な検証を行う。拒否理由はErrBlockedURLでラップする。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	host := parsed.Hostname()
	var reason string
	switch {
	case !strings.EqualFold(parsed.Scheme, "https"):
		reason = fmt.Sprintf("scheme %q", parsed.Scheme)
	case parsed.User != nil:
		reason = "credentials in URL"
	case host == "":
		reason = "empty host"
	case parsed.Port() != "" && parsed.Port() != "443":
		reason = "port " + parsed.Port()
	case isBlockedHost(host):
		reason = "host " + host
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrBlockedURL, reason)
}

// ReadLimited はrから最大maxBytesまで読み込む。超過した場合はErrResponseTooLargeを返す。
func ReadLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// isBlockedHost はIPリテラルなら内部向けアドレスか、ホスト名ならローカル用ドメインかを判定する。
func isBlockedHost(host string) bool {
	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
			addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
			return true
		}
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	name := strings.TrimSuffix(strings.ToLower(host), ".")
	if name == "localhost" {
		return true
	}
	for _, suffix := range []string{".localhost", ".internal", ".local"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
