package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSuccess(t *testing.T) {
	w, body := perform(t, func(c *gin.Context) {
		Success(c, gin.H{"available": "15.00"})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["code"])
	assert.Equal(t, "success", body["message"])
	assert.Equal(t, "15.00", body["data"].(map[string]interface{})["available"])
}

func TestSuccess_NilDataOmitted(t *testing.T) {
	_, body := perform(t, func(c *gin.Context) { Success(c, nil) })
	_, ok := body["data"]
	assert.False(t, ok)
}

func TestSuccessWithMessage(t *testing.T) {
	_, body := perform(t, func(c *gin.Context) {
		SuccessWithMessage(c, "提现申请已提交", gin.H{"id": 9})
	})
	assert.Equal(t, "提现申请已提交", body["message"])
	assert.Equal(t, float64(9), body["data"].(map[string]interface{})["id"])
}

func TestSuccessPage(t *testing.T) {
	t.Run("正常分页", func(t *testing.T) {
		_, body := perform(t, func(c *gin.Context) {
			SuccessPage(c, []string{"a", "b"}, 100, 2, 20)
		})
		page := body["data"].(map[string]interface{})
		assert.Len(t, page["list"], 2)
		assert.Equal(t, float64(100), page["total"])
		assert.Equal(t, float64(2), page["page"])
		assert.Equal(t, float64(20), page["page_size"])
	})

	t.Run("nil 列表输出空数组", func(t *testing.T) {
		_, body := perform(t, func(c *gin.Context) {
			SuccessPage(c, nil, 0, 1, 10)
		})
		page := body["data"].(map[string]interface{})
		assert.Equal(t, []interface{}{}, page["list"])
		assert.Equal(t, float64(0), page["total"])
	})
}

func TestErrorWithStatus(t *testing.T) {
	w, body := perform(t, func(c *gin.Context) {
		ErrorWithStatus(c, http.StatusConflict, errors.ErrLedgerConflict.Code, errors.ErrLedgerConflict.Message)
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(errors.ErrLedgerConflict.Code), body["code"])
	assert.Equal(t, errors.ErrLedgerConflict.Message, body["message"])
}

func TestAbortHelpers(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(*gin.Context, string)
		message string
		status  int
		appErr  *errors.AppError
		want    string
	}{
		{"参数错误", BadRequest, "无效的推广员ID", http.StatusBadRequest, errors.ErrInvalidParams, "无效的推广员ID"},
		{"未登录默认消息", Unauthorized, "", http.StatusUnauthorized, errors.ErrUnauthorized, errors.ErrUnauthorized.Message},
		{"权限不足", Forbidden, "无权访问", http.StatusForbidden, errors.ErrPermissionDenied, "无权访问"},
		{"限流", TooManyRequests, "", http.StatusTooManyRequests, errors.ErrRateLimitExceed, errors.ErrRateLimitExceed.Message},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

			tt.fn(c, tt.message)

			assert.True(t, c.IsAborted())
			assert.Equal(t, tt.status, w.Code)
			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.appErr.Code, body.Code)
			assert.Equal(t, tt.want, body.Message)
		})
	}
}
