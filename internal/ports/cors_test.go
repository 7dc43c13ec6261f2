package ports_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxann/radiotruyen/internal/ports"
)

const prodDomainSuffix = "radiotruyen.app"
const stagingDomainSuffix = "radiotruyen.pages.dev"

type originRule struct {
	origin  string
	allowed bool
}

func TestCORS(t *testing.T) {
	t.Parallel()
	allowedOrigins, err := ports.NewDomainSuffixes(
		prodDomainSuffix,
		stagingDomainSuffix,
	)
	require.NoError(t, err)

	cases := []originRule{
		// Prod
		{
			origin:  "https://radiotruyen.app",
			allowed: true,
		},
		{
			origin:  "https://www.radiotruyen.app",
			allowed: true,
		},
		// Staging
		{
			origin:  "https://53bcd591.radiotruyen.pages.dev",
			allowed: true,
		},
		{
			origin:  "https://radiotruyen.pages.dev",
			allowed: true,
		},
		// Other pages
		{
			origin:  "example.com",
			allowed: false,
		},
		{
			origin:  "https://example.com",
			allowed: false,
		},
		{
			origin:  "https://www.google.com",
			allowed: false,
		},
		// Similar-looking domains
		{
			origin:  "https://radio-truyen.app",
			allowed: false,
		},
		{
			origin:  "https://myradiotruyen.app",
			allowed: false,
		},
		{
			origin:  "https://otherradiotruyen.pages.dev",
			allowed: false,
		},
		// Weird cases
		{
			origin:  "",
			allowed: false,
		},
		{
			origin:  "radiotruyen",
			allowed: false,
		},
		{
			origin:  "truyen.app",
			allowed: false,
		},
		{
			origin:  "radiotruyen.app",
			allowed: false,
		},
		{
			origin:  "pages.dev",
			allowed: false,
		},
	}

	runCORSTest := func(t *testing.T, handler http.HandlerFunc, method string, c originRule, handlerStatusCode int, handlerBody []byte) {
		req := httptest.NewRequest(method, "https://api-url.com", nil)
		req.Header.Set("Origin", c.origin)
		w := httptest.NewRecorder()

		handler(w, req)

		resp := w.Result()

		// The handler is allowed to run when the method is not OPTIONS
		if method != "OPTIONS" {
			require.Equal(t, handlerStatusCode, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, handlerBody, body)
		}

		// CORS
		if c.allowed {
			require.Equal(t, c.origin, resp.Header.Get("Access-Control-Allow-Origin"))

			if method == "OPTIONS" {
				require.Equal(t, "GET", resp.Header.Get("Access-Control-Allow-Methods"))
				require.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
			} else {
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
			}
		} else {
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
		}
	}

	t.Run("BuildCORSMiddleware", func(t *testing.T) {
		middleware := ports.BuildCORSMiddleware(allowedOrigins)

		handler := middleware(
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("Hello, world!"))
				w.WriteHeader(200)
			},
		)

		for _, c := range cases {
			c := c
			t.Run(fmt.Sprintf("Origin:'%s'", c.origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range []string{"GET", "OPTIONS"} {
					method := method
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						runCORSTest(t, handler, method, c, 200, []byte("Hello, world!"))
					})
				}
			})
		}
	})

	t.Run("BuildCORSHandler", func(t *testing.T) {
		handler := ports.BuildCORSHandler(allowedOrigins)

		for _, c := range cases {
			c := c
			t.Run(fmt.Sprintf("Origin:'%s'", c.origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range []string{"GET", "OPTIONS"} {
					method := method
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						runCORSTest(t, handler, method, c, 204, []byte{})
					})
				}
			})
		}
	})
}
