package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/jwt"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type reqOpt func(c *gin.Context)

func withParam(key, value string) reqOpt {
	return func(c *gin.Context) { c.Params = append(c.Params, gin.Param{Key: key, Value: value}) }
}

func asUser(id int64) reqOpt {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, id)
		c.Set(middleware.ContextKeyUserType, jwt.UserTypeUser)
	}
}

func asAdmin(id int64) reqOpt {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, id)
		c.Set(middleware.ContextKeyUserType, jwt.UserTypeAdmin)
	}
}

func newContext(target string, opts ...reqOpt) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	for _, opt := range opts {
		opt(c)
	}
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
		wantMsg    string
	}{
		{"参数错误", errors.ErrInvalidParams.WithMessage("金额必须大于0"), http.StatusBadRequest, 1001, "金额必须大于0"},
		{"资源不存在", errors.ErrAffiliateNotFound, http.StatusNotFound, 3000, "推广员不存在"},
		{"令牌无效", errors.ErrTokenInvalid, http.StatusUnauthorized, 2002, "无效的令牌"},
		{"权限不足", errors.ErrPermissionDenied, http.StatusForbidden, 2004, "权限不足"},
		{"余额冲突", errors.ErrLedgerConflict, http.StatusConflict, 7004, "余额已变动，请重试"},
		{"限流", errors.ErrRateLimitExceed, http.StatusTooManyRequests, 1008, errors.ErrRateLimitExceed.Message},
		{"网关失败保留消息", errors.ErrGatewayUnavailable.WithError(assert.AnError), http.StatusBadGateway, 6002, "支付网关请求失败"},
		{"配置错误隐藏详情", errors.ErrCommissionConfigCorrupt, http.StatusInternalServerError, 4001, internalErrorMessage},
		{"数据库错误隐藏详情", errors.ErrDatabaseError.WithError(assert.AnError), http.StatusInternalServerError, 1004, internalErrorMessage},
		{"包装后的业务错误", fmt.Errorf("resolve: %w", errors.ErrWithdrawalResolved), http.StatusBadRequest, errors.ErrWithdrawalResolved.Code, errors.ErrWithdrawalResolved.Message},
		{"普通错误", assert.AnError, http.StatusInternalServerError, errors.ErrUnknown.Code, internalErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext("/")

			require.True(t, HandleError(c, tt.err))
			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode(t, w)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}

	t.Run("nil 不处理", func(t *testing.T) {
		c, w := newContext("/")
		assert.False(t, HandleError(c, nil))
		assert.Zero(t, w.Body.Len())
	})
}

func TestMustSucceedVariants(t *testing.T) {
	c, w := newContext("/")
	MustSucceed(c, nil, gin.H{"balance": "12.50"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decode(t, w).Message)

	c, w = newContext("/")
	MustSucceedWithMessage(c, nil, "提现申请已提交", nil)
	assert.Equal(t, "提现申请已提交", decode(t, w).Message)

	c, w = newContext("/")
	MustSucceed(c, errors.ErrNotFound, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrNotFound.Code, decode(t, w).Code)

	c, w = newContext("/")
	MustSucceedPage(c, nil, []string{"a", "b"}, 41, Page{Page: 3, PageSize: 20})
	data, ok := decode(t, w).Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(41), data["total"])
	assert.Equal(t, float64(3), data["page"])
	assert.Equal(t, float64(20), data["page_size"])
}

func TestRequireIdentity(t *testing.T) {
	c, _ := newContext("/", asUser(12345))
	id, ok := RequireUserID(c)
	assert.True(t, ok)
	assert.Equal(t, int64(12345), id)

	c, w := newContext("/")
	_, ok = RequireUserID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "请先登录", decode(t, w).Message)

	c, _ = newContext("/", asAdmin(99))
	id, ok = RequireAdminID(c)
	assert.True(t, ok)
	assert.Equal(t, int64(99), id)

	c, w = newContext("/", asUser(12345))
	_, ok = RequireAdminID(c)
	assert.False(t, ok, "用户令牌不能访问管理端")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParseIDs(t *testing.T) {
	c, _ := newContext("/", withParam("id", "12345"))
	id, ok := ParseID(c, "订单")
	assert.True(t, ok)
	assert.Equal(t, int64(12345), id)

	c, w := newContext("/", withParam("id", "abc"))
	_, ok = ParseID(c, "订单")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "无效的订单ID", decode(t, w).Message)

	c, _ = newContext("/", withParam("level", "2"))
	id, ok = ParseParamID(c, "level", "层级")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	c, _ = newContext("/")
	qid, ok := ParseQueryID(c, "affiliate_id", "推广员")
	assert.True(t, ok)
	assert.Nil(t, qid)

	c, _ = newContext("/?affiliate_id=123")
	qid, ok = ParseQueryID(c, "affiliate_id", "推广员")
	assert.True(t, ok)
	require.NotNil(t, qid)
	assert.Equal(t, int64(123), *qid)

	c, w = newContext("/?affiliate_id=x1")
	qid, ok = ParseQueryID(c, "affiliate_id", "推广员")
	assert.False(t, ok)
	assert.Nil(t, qid)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequireAdminAndParseID(t *testing.T) {
	c, _ := newContext("/", asAdmin(111), withParam("id", "789"))
	adminID, resourceID, ok := RequireAdminAndParseID(c, "提现申请")
	assert.True(t, ok)
	assert.Equal(t, int64(111), adminID)
	assert.Equal(t, int64(789), resourceID)

	c, w := newContext("/", asAdmin(111), withParam("id", "abc"))
	_, _, ok = RequireAdminAndParseID(c, "提现申请")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newContext("/", withParam("id", "789"))
	_, _, ok = RequireAdminAndParseID(c, "提现申请")
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBindPagination(t *testing.T) {
	tests := []struct {
		query      string
		want       Page
		wantOffset int
	}{
		{"", Page{Page: 1, PageSize: 10}, 0},
		{"page=3&page_size=20", Page{Page: 3, PageSize: 20}, 40},
		{"page=-1&page_size=200", Page{Page: 1, PageSize: 100}, 0},
		{"page=x&page_size=0", Page{Page: 1, PageSize: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := newContext("/?" + tt.query)
			p := BindPagination(c)
			assert.Equal(t, tt.want, p)
			assert.Equal(t, tt.wantOffset, p.Offset())
			assert.Equal(t, tt.want.PageSize, p.Limit())
		})
	}
}
