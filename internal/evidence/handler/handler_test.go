package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vouch/internal/evidence/handler/mocks"
	"vouch/internal/evidence/ingest"
	"vouch/internal/evidence/models"
	"vouch/internal/objectstore"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/evidence-mocks.go -package=mocks IngestService,LinkService

type EvidenceHandlerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	ingest   *mocks.MockIngestService
	links    *mocks.MockLinkService
	router   chi.Router
	tenantID id.TenantID
	userID   id.UserID
	now      time.Time
}

func TestEvidenceHandlerSuite(t *testing.T) {
	suite.Run(t, new(EvidenceHandlerSuite))
}

func (s *EvidenceHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ingest = mocks.NewMockIngestService(s.ctrl)
	s.links = mocks.NewMockLinkService(s.ctrl)
	s.tenantID = id.TenantID(uuid.New())
	s.userID = id.UserID(uuid.New())
	s.now = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	h := New(s.ingest, s.links, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterInternal(s.router)
}

func (s *EvidenceHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *EvidenceHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.tenantID, s.userID))
}

func (s *EvidenceHandlerSuite) file(status models.FileStatus, mime string) *models.EvidenceFile {
	f := &models.EvidenceFile{
		ID:           id.NewEvidenceFileID(),
		TenantID:     s.tenantID,
		OriginalName: "report.pdf",
		MimeType:     mime,
		SizeBytes:    5,
		Status:       status,
		Checksum:     "abc123",
		UploadedBy:   s.userID,
		CreatedAt:    s.now,
	}
	if status == models.FileStatusReady {
		f.ViewKey = "tenants/x/evidence/y/report.pdf"
	}
	return f
}

func (s *EvidenceHandlerSuite) TestUpload() {
	s.Run("ready file returns 201 with view reference", func() {
		file := s.file(models.FileStatusReady, models.MimePDF)
		s.ingest.EXPECT().MaxUploadBytes().Return(int64(1024)).AnyTimes()
		s.ingest.EXPECT().Upload(gomock.Any(), s.tenantID, s.userID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.TenantID, _ id.UserID, up ingest.Upload) (*ingest.Result, error) {
				s.Equal("report.pdf", up.Filename)
				s.Equal(models.MimePDF, up.ContentType)
				s.Equal([]byte("%PDF-"), up.Data)
				return &ingest.Result{File: file, StatusCode: http.StatusCreated}, nil
			})

		rr := s.do(testutil.NewMultipartRequest(s.T(), "/evidence", "file", "report.pdf", models.MimePDF, []byte("%PDF-")))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[UploadResponse](s.T(), rr)
		s.Equal(file.ID.String(), resp.ID)
		s.Equal("READY", resp.Status)
		s.Equal(models.ViewPath(file.ID), resp.ViewEndpointRef)
		s.Empty(resp.JobID)
	})

	s.Run("convertible file returns 202 with job id", func() {
		file := s.file(models.FileStatusConvertPending, models.MimeDOCX)
		s.ingest.EXPECT().MaxUploadBytes().Return(int64(1024)).AnyTimes()
		s.ingest.EXPECT().Upload(gomock.Any(), s.tenantID, s.userID, gomock.Any()).
			Return(&ingest.Result{File: file, StatusCode: http.StatusAccepted, JobID: "job-1"}, nil)

		rr := s.do(testutil.NewMultipartRequest(s.T(), "/evidence", "file", "memo.docx", models.MimeDOCX, []byte("PK")))

		testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
		resp := testutil.UnmarshalResponse[UploadResponse](s.T(), rr)
		s.Equal("CONVERT_PENDING", resp.Status)
		s.Equal("job-1", resp.JobID)
		s.Empty(resp.ViewEndpointRef)
	})

	s.Run("missing file part is invalid input", func() {
		s.ingest.EXPECT().MaxUploadBytes().Return(int64(1024)).AnyTimes()

		rr := s.do(testutil.NewMultipartRequest(s.T(), "/evidence", "attachment", "a.pdf", models.MimePDF, []byte("x")))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("non-multipart body is invalid input", func() {
		s.ingest.EXPECT().MaxUploadBytes().Return(int64(1024)).AnyTimes()

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/evidence", map[string]string{"file": "a.pdf"}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("unsupported type returns 415 with accepted list", func() {
		s.ingest.EXPECT().MaxUploadBytes().Return(int64(1024)).AnyTimes()
		s.ingest.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnsupportedMediaType, "unsupported media type: application/zip").
				WithDetails(map[string]any{"mime_type": "application/zip", "accepted": models.AcceptedMimeTypes}))

		rr := s.do(testutil.NewMultipartRequest(s.T(), "/evidence", "file", "a.zip", "application/zip", []byte("PK")))

		testutil.AssertStatus(s.T(), rr, http.StatusUnsupportedMediaType)
		resp := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal(string(dErrors.CodeUnsupportedMediaType), resp["error"])
		details := resp["details"].(map[string]any)
		s.Equal("application/zip", details["mime_type"])
		s.NotEmpty(details["accepted"])
	})

	s.Run("internal failure hides the cause", func() {
		s.ingest.EXPECT().MaxUploadBytes().Return(int64(1024)).AnyTimes()
		s.ingest.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(context.DeadlineExceeded, dErrors.CodeInternal, "failed to store evidence bytes"))

		rr := s.do(testutil.NewMultipartRequest(s.T(), "/evidence", "file", "a.pdf", models.MimePDF, []byte("x")))

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		resp := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal(string(dErrors.CodeInternal), resp["error"])
		s.Nil(resp["error_description"])
	})
}

func (s *EvidenceHandlerSuite) TestView() {
	s.Run("streams the rendition", func() {
		file := s.file(models.FileStatusReady, models.MimePDF)
		s.ingest.EXPECT().View(gomock.Any(), s.tenantID, file.ID).
			Return(file, &objectstore.Object{Data: []byte("%PDF-1.7"), ContentType: models.MimePDF}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/evidence/"+file.ID.String()+"/view"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal(models.MimePDF, rr.Header().Get("Content-Type"))
		s.Equal("nosniff", rr.Header().Get("X-Content-Type-Options"))
		s.Contains(rr.Header().Get("Content-Disposition"), `filename="report.pdf"`)
		s.Equal("%PDF-1.7", rr.Body.String())
	})

	s.Run("converted office file is named as pdf", func() {
		file := s.file(models.FileStatusReady, models.MimeDOCX)
		file.OriginalName = "memo.docx"
		s.ingest.EXPECT().View(gomock.Any(), s.tenantID, file.ID).
			Return(file, &objectstore.Object{Data: []byte("%PDF"), ContentType: models.MimePDF}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/evidence/"+file.ID.String()+"/view"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Contains(rr.Header().Get("Content-Disposition"), `filename="memo.pdf"`)
	})

	s.Run("pending file is a conflict", func() {
		fileID := id.NewEvidenceFileID()
		s.ingest.EXPECT().View(gomock.Any(), s.tenantID, fileID).
			Return(nil, nil, dErrors.New(dErrors.CodeConflict, "evidence file is not ready for viewing").
				WithDetails(map[string]any{"status": "CONVERT_PENDING"}))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/evidence/"+fileID.String()+"/view"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("malformed id is rejected before the service", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/evidence/not-a-uuid/view"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

func (s *EvidenceHandlerSuite) TestLink() {
	reqID := id.NewRequestID()
	fileID := id.NewEvidenceFileID()
	path := "/requests/" + reqID.String() + "/evidence"

	s.Run("creates the link", func() {
		s.links.EXPECT().Link(gomock.Any(), s.tenantID, reqID, fileID, s.userID).
			Return(&models.Link{
				ID:             id.NewLinkID(),
				TenantID:       s.tenantID,
				RequestID:      reqID,
				EvidenceFileID: fileID,
				LinkedBy:       s.userID,
				CreatedAt:      s.now,
			}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"evidence_file_id": fileID.String()}))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[LinkResponse](s.T(), rr)
		s.Equal(fileID.String(), resp.EvidenceFileID)
		s.Equal(reqID.String(), resp.RequestID)
		s.True(s.now.Equal(resp.LinkedAt))
	})

	s.Run("missing file id", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("unknown fields are rejected", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{
			"evidence_file_id": fileID.String(),
			"tenant_id":        uuid.NewString(),
		}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("duplicate link is a conflict", func() {
		s.links.EXPECT().Link(gomock.Any(), s.tenantID, reqID, fileID, s.userID).
			Return(nil, dErrors.New(dErrors.CodeConflict, "evidence already linked to request"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"evidence_file_id": fileID.String()}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})
}

func (s *EvidenceHandlerSuite) TestList() {
	reqID := id.NewRequestID()
	path := "/requests/" + reqID.String() + "/evidence"

	s.Run("returns items with view references", func() {
		fileID := id.NewEvidenceFileID()
		s.links.EXPECT().List(gomock.Any(), s.tenantID, reqID).Return([]models.LinkedEvidence{{
			EvidenceFileID: fileID,
			OriginalName:   "scan.png",
			MimeType:       models.MimePNG,
			SizeBytes:      42,
			Status:         models.FileStatusReady,
			LinkedAt:       s.now,
			LinkedBy:       s.userID,
		}}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, path))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[ListEvidenceResponse](s.T(), rr)
		s.Require().Len(resp.Items, 1)
		s.Equal(models.ViewPath(fileID), resp.Items[0].ViewEndpointRef)
		s.Equal("READY", resp.Items[0].Status)
	})

	s.Run("empty list serializes as an array", func() {
		s.links.EXPECT().List(gomock.Any(), s.tenantID, reqID).Return([]models.LinkedEvidence{}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, path))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Contains(rr.Body.String(), `"items":[]`)
	})

	s.Run("unknown request", func() {
		s.links.EXPECT().List(gomock.Any(), s.tenantID, reqID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "request not found"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, path))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *EvidenceHandlerSuite) TestConverted() {
	fileID := id.NewEvidenceFileID()
	path := "/internal/evidence/" + fileID.String() + "/converted"

	s.Run("marks the file ready", func() {
		file := s.file(models.FileStatusReady, models.MimeDOCX)
		viewKey := models.ConvertedObjectKey(s.tenantID, fileID)
		s.ingest.EXPECT().MarkConverted(gomock.Any(), s.tenantID, fileID, viewKey).Return(file, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{
			"tenant_id": s.tenantID.String(),
			"view_key":  viewKey,
		}))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[FileResponse](s.T(), rr)
		s.Equal("READY", resp.Status)
	})

	s.Run("view key outside the tenant is rejected", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{
			"tenant_id": s.tenantID.String(),
			"view_key":  "tenants/" + uuid.NewString() + "/evidence/x/view.pdf",
		}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("already converted is a conflict", func() {
		s.ingest.EXPECT().MarkConverted(gomock.Any(), s.tenantID, fileID, "").
			Return(nil, dErrors.New(dErrors.CodeConflict, "evidence file is not awaiting conversion"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{
			"tenant_id": s.tenantID.String(),
		}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})
}
