package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vouch/internal/approval/handler/mocks"
	"vouch/internal/approval/models"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/approval-mocks.go -package=mocks Service

type fixture struct {
	service  *mocks.MockService
	router   chi.Router
	tenantID id.TenantID
	userID   id.UserID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		service:  mocks.NewMockService(ctrl),
		router:   chi.NewRouter(),
		tenantID: id.TenantID(uuid.New()),
		userID:   id.UserID(uuid.New()),
	}
	New(f.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(f.router)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(f.router, testutil.WithPrincipal(req, f.tenantID, f.userID))
}

func TestHandleApprove(t *testing.T) {
	decidedAt := time.Date(2026, 4, 1, 12, 0, 0, 500, time.UTC)

	t.Run("approved request returns the decision", func(t *testing.T) {
		f := newFixture(t)
		reqID := id.NewRequestID()
		f.service.EXPECT().Approve(gomock.Any(), f.tenantID, reqID, f.userID).Return(&models.Decision{
			RequestID: reqID,
			Status:    models.StatusApproved,
			DecidedAt: decidedAt,
			DecidedBy: f.userID,
		}, nil)

		rr := f.do(testutil.NewRequest(t, http.MethodPost, "/requests/"+reqID.String()+"/approve"))

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[DecisionResponse](t, rr)
		assert.Equal(t, "APPROVED", resp.Status)
		assert.Equal(t, f.userID.String(), resp.DecidedBy)
		assert.Equal(t, decidedAt.Format(time.RFC3339Nano), resp.DecidedAt)
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   dErrors.Code
	}{
		{
			name:       "missing evidence",
			err:        dErrors.New(dErrors.CodeEvidenceRequired, "evidence is required before approval").WithDetails(map[string]any{"hasEvidence": false}),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   dErrors.CodeEvidenceRequired,
		},
		{
			name:       "stale evidence",
			err:        dErrors.New(dErrors.CodeEvidenceStale, "linked evidence is too old").WithDetails(map[string]any{"ageSeconds": 7200, "ttlSeconds": 3600}),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   dErrors.CodeEvidenceStale,
		},
		{
			name:       "already decided",
			err:        dErrors.New(dErrors.CodeConflict, "request is not awaiting approval").WithDetails(map[string]any{"status": "APPROVED"}),
			wantStatus: http.StatusConflict,
			wantCode:   dErrors.CodeConflict,
		},
		{
			name:       "unknown request",
			err:        dErrors.New(dErrors.CodeNotFound, "request not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   dErrors.CodeNotFound,
		},
		{
			name:       "audit unavailable",
			err:        dErrors.Wrap(io.ErrUnexpectedEOF, dErrors.CodeInternal, "audit append failed"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   dErrors.CodeInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			reqID := id.NewRequestID()
			f.service.EXPECT().Approve(gomock.Any(), f.tenantID, reqID, f.userID).Return(nil, tt.err)

			rr := f.do(testutil.NewRequest(t, http.MethodPost, "/requests/"+reqID.String()+"/approve"))

			testutil.AssertStatusAndError(t, rr, tt.wantStatus, string(tt.wantCode))
		})
	}

	t.Run("guard details reach the client", func(t *testing.T) {
		f := newFixture(t)
		reqID := id.NewRequestID()
		f.service.EXPECT().Approve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil,
			dErrors.New(dErrors.CodeEvidenceStale, "linked evidence is too old").
				WithDetails(map[string]any{"ageSeconds": 7200, "ttlSeconds": 3600}))

		rr := f.do(testutil.NewRequest(t, http.MethodPost, "/requests/"+reqID.String()+"/approve"))

		resp := testutil.UnmarshalErrorResponse(t, rr)
		details, ok := resp["details"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 7200, details["ageSeconds"])
		assert.EqualValues(t, 3600, details["ttlSeconds"])
	})

	t.Run("malformed id never reaches the service", func(t *testing.T) {
		f := newFixture(t)

		rr := f.do(testutil.NewRequest(t, http.MethodPost, "/requests/nope/approve"))

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

func TestHandleReject(t *testing.T) {
	testutil.Given(t, "a submitted request", func(t *testing.T) {
		f := newFixture(t)
		reqID := id.NewRequestID()
		path := "/requests/" + reqID.String() + "/reject"

		testutil.When(t, "the reason has surrounding whitespace", func(t *testing.T) {
			f.service.EXPECT().Reject(gomock.Any(), f.tenantID, reqID, f.userID, "missing invoice").Return(&models.Decision{
				RequestID: reqID,
				Status:    models.StatusRejected,
				DecidedAt: time.Now(),
				DecidedBy: f.userID,
			}, nil)

			rr := f.do(testutil.NewJSONRequest(t, http.MethodPost, path, map[string]string{"reason": "  missing invoice \n"}))

			testutil.Then(t, "the trimmed reason is passed on", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				resp := testutil.UnmarshalResponse[DecisionResponse](t, rr)
				assert.Equal(t, "REJECTED", resp.Status)
			})
			testutil.And(t, "the decision names the rejecting user", func(t *testing.T) {
				resp := testutil.UnmarshalResponse[DecisionResponse](t, rr)
				assert.Equal(t, f.userID.String(), resp.DecidedBy)
			})
		})

		testutil.When(t, "the reason is too long", func(t *testing.T) {
			rr := f.do(testutil.NewJSONRequest(t, http.MethodPost, path, map[string]string{"reason": strings.Repeat("é", 1001)}))

			testutil.Then(t, "it is rejected before the service", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
			})
		})

		testutil.When(t, "the body is empty", func(t *testing.T) {
			f.service.EXPECT().Reject(gomock.Any(), f.tenantID, reqID, f.userID, "").
				Return(nil, dErrors.New(dErrors.CodeConflict, "request is not awaiting a decision"))

			rr := f.do(testutil.NewRequest(t, http.MethodPost, path))

			testutil.Then(t, "the service decides", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, string(dErrors.CodeConflict))
			})
		})
	})
}

func TestHandleGet(t *testing.T) {
	f := newFixture(t)
	reqID := id.NewRequestID()
	ttl := int64(3600)
	approvedAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f.service.EXPECT().Get(gomock.Any(), f.tenantID, reqID).Return(&models.Request{
		ID:                          reqID,
		TenantID:                    f.tenantID,
		Title:                       "Vendor onboarding",
		Status:                      models.StatusApproved,
		EvidenceRequiredForApproval: true,
		EvidenceTTLSeconds:          &ttl,
		ApprovedAt:                  &approvedAt,
		ApprovedBy:                  &f.userID,
	}, nil)

	rr := f.do(testutil.NewRequest(t, http.MethodGet, "/requests/"+reqID.String()))

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[RequestResponse](t, rr)
	assert.Equal(t, "APPROVED", resp.Status)
	assert.True(t, resp.EvidenceRequiredForApproval)
	require.NotNil(t, resp.EvidenceTTLSeconds)
	assert.Equal(t, ttl, *resp.EvidenceTTLSeconds)
	assert.Equal(t, f.userID.String(), resp.ApprovedBy)
	assert.Empty(t, resp.RejectedBy)
}
