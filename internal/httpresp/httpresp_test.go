package httpresp

import (
	"net/http"
	"testing"

	"github.com/yungbote/mindgraph-backend/internal/kgerr"
)

func TestStatusForKind(t *testing.T) {
	cases := []struct {
		kind kgerr.Kind
		want int
	}{
		{kgerr.KindInvalidUserID, http.StatusUnprocessableEntity},
		{kgerr.KindUserAbsent, http.StatusNotFound},
		{kgerr.KindNodeAbsent, http.StatusNotFound},
		{kgerr.KindEmptyContent, http.StatusBadRequest},
		{kgerr.KindIngestBusy, http.StatusTooManyRequests},
		{kgerr.KindTimeout, http.StatusGatewayTimeout},
		{kgerr.KindUserExists, http.StatusOK},
		{kgerr.KindExtractFailed, http.StatusInternalServerError},
		{kgerr.KindEmbedFailed, http.StatusInternalServerError},
		{kgerr.KindDimensionMismatch, http.StatusInternalServerError},
		{kgerr.KindConnectFailed, http.StatusInternalServerError},
		{kgerr.KindConflictingSchema, http.StatusInternalServerError},
		{kgerr.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusForKind(tc.kind); got != tc.want {
			t.Errorf("StatusForKind(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}
