package gin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkout "github.com/aprskavec/stripe-framer"
	"github.com/aprskavec/stripe-framer/identity"
)

func TestBuyerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(BuyerMiddleware(WithRootDomain("example.org")))
	router.GET("/*path", func(c *gin.Context) {
		visit, ok := VisitFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		fromCtx, ok := identity.VisitFromContext(c.Request.Context())
		if !ok || fromCtx != visit {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"kind":   visit.Kind,
			"locale": visit.Buyer.Locale,
			"email":  visit.Buyer.Email,
			"fbp":    visit.Buyer.BrowserID,
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/fr/get-pro?email=a@x.com&fbclid=c", nil)
	req.AddCookie(&http.Cookie{Name: identity.BrowserCookie, Value: "fb.1.1.ref"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(checkout.FunnelOptionA), body["kind"])
	assert.Equal(t, "fr", body["locale"])
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, "fb.1.1.ref", body["fbp"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "example.org", cookies[0].Domain)
}

func TestVisitFromMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := VisitFrom(c)
	assert.False(t, ok)
}
