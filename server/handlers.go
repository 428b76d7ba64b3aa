package server

import (
	"fmt"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pharmalnet/dti/archive"
	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/pipeline"
	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
	"github.com/pharmalnet/dti/serialize"
	"github.com/pharmalnet/dti/storage"
)

const (
	jobTrain   = "train"
	jobPredict = "predict"

	msgInvalidMethod  = "Invalid request method"
	msgTrainFields    = "Please upload CSV and fill all required fields"
	msgModelRequired  = "Please upload a trained model file (.zip or model file)."
	msgNoInput        = "No valid input provided (CSV or manual)."
	msgTrainSuccess   = "Model trained successfully!"
	msgPredictSuccess = "Prediction successful!"
)

// postOnly answers every method but POST with 400.
func (s *Server) postOnly(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidMethod})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.uploadLimit())
		h(c)
	}
}

// fail logs err and writes {"error": msg} with the status of its kind.
func (s *Server) fail(c *gin.Context, job string, err error) {
	status := errors.HTTPStatus(err)
	kind := errors.KindOf(err)
	JobFailureCount.WithLabelValues(job, kind.String()).Inc()
	if status >= http.StatusInternalServerError {
		s.logger.Error("Job failed", err, log.OperationKey, job, log.ErrorTypeKey, kind.String())
	} else {
		s.logger.Warn("Job rejected", log.OperationKey, job, log.ErrorTypeKey, kind.String(), "error", err.Error())
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) badRequest(c *gin.Context, job, msg string) {
	JobFailureCount.WithLabelValues(job, errors.KindClient.String()).Inc()
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func readTable(fh *multipart.FileHeader) (*dataset.Table, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dataset.ReadCSV(f)
}

// train handles POST /pharmalnet/train/.
func (s *Server) train(c *gin.Context) {
	JobStartedCount.WithLabelValues(jobTrain).Inc()
	start := time.Now()
	defer func() { JobDuration.WithLabelValues(jobTrain).Observe(time.Since(start).Seconds()) }()

	fh, ferr := c.FormFile("dataset")
	compoundCol := strings.TrimSpace(c.PostForm("smiles_col"))
	sequenceCol := strings.TrimSpace(c.PostForm("protein_col"))
	labelCol := strings.TrimSpace(c.PostForm("value_col"))
	modelName := c.DefaultPostForm("model_name", archive.DefaultName)
	if ferr != nil || compoundCol == "" || sequenceCol == "" || labelCol == "" {
		s.badRequest(c, jobTrain, msgTrainFields)
		return
	}

	job := s.cfg.Training.JobConfig()
	if v := c.PostForm("epochs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.fail(c, jobTrain, errors.NewValidationError("epochs", "must be an integer", v))
			return
		}
		job.Epochs = n
	}
	if v := c.PostForm("seed"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.fail(c, jobTrain, errors.NewValidationError("seed", "must be an integer", v))
			return
		}
		job.Seed = n
	}

	table, err := readTable(fh)
	if err != nil {
		s.badRequest(c, jobTrain, err.Error())
		return
	}

	out, err := s.trainer.Run(c.Request.Context(), pipeline.TrainRequest{
		Table:       table,
		CompoundCol: compoundCol,
		SequenceCol: sequenceCol,
		LabelCol:    labelCol,
		ModelName:   modelName,
		Config:      job,
	})
	if err != nil {
		s.fail(c, jobTrain, err)
		return
	}
	defer func() {
		if err := out.Cleanup(); err != nil {
			s.logger.Warn("Job cleanup failed", log.JobIDKey, out.JobID, "error", err.Error())
		}
	}()

	model, err := s.storage.SaveModel(out.JobID, out.Archive.ArchivePath, filepath.Base(out.Archive.ArchivePath))
	if err != nil {
		s.fail(c, jobTrain, err)
		return
	}
	graph, err := s.storage.SaveGraph(out.JobID, out.Evaluation.GraphPath, archive.SanitizeName(modelName))
	if err != nil {
		s.fail(c, jobTrain, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": msgTrainSuccess,
		"job_id":  out.JobID,
		"seed":    out.Config.Seed,
		"metrics": gin.H{
			"R2":   serialize.ToTransportSafe(out.Evaluation.R2),
			"MSE":  serialize.ToTransportSafe(out.Evaluation.MSE),
			"Corr": serialize.ToTransportSafe(out.Evaluation.Corr),
		},
		"graph_url": s.storage.URL(storage.KindGraph, graph.Name),
		"model_zip": s.storage.URL(storage.KindModel, model.Name),
		"graph_data": gin.H{
			"actual":    safeSlice(out.Evaluation.Actual),
			"predicted": safeSlice(out.Evaluation.Predicted),
		},
	})
}

func safeSlice(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = serialize.ToTransportSafe(v)
	}
	return out
}

// predict handles POST /pharmalnet/predict/.
func (s *Server) predict(c *gin.Context) {
	JobStartedCount.WithLabelValues(jobPredict).Inc()
	start := time.Now()
	defer func() { JobDuration.WithLabelValues(jobPredict).Observe(time.Since(start).Seconds()) }()

	modelFile, err := c.FormFile("model")
	if err != nil {
		s.badRequest(c, jobPredict, msgModelRequired)
		return
	}
	datasetFile, _ := c.FormFile("dataset")
	compound := strings.TrimSpace(c.PostForm("smiles"))
	sequence := strings.TrimSpace(c.PostForm("protein"))
	if datasetFile == nil && (compound == "" || sequence == "") {
		s.badRequest(c, jobPredict, msgNoInput)
		return
	}

	uploadDir, err := os.MkdirTemp(s.cfg.Storage.WorkDir, "pharmalnet_upload_")
	if err != nil {
		s.fail(c, jobPredict, errors.Wrap(err, "create upload directory"))
		return
	}
	defer os.RemoveAll(uploadDir)
	modelPath := filepath.Join(uploadDir, uploadName(modelFile.Filename))
	if err := c.SaveUploadedFile(modelFile, modelPath); err != nil {
		s.fail(c, jobPredict, errors.Wrap(err, "save uploaded model"))
		return
	}

	if datasetFile != nil {
		table, err := readTable(datasetFile)
		if err != nil {
			s.badRequest(c, jobPredict, err.Error())
			return
		}
		res, err := s.predictor.PredictBatch(c.Request.Context(), modelPath, pipeline.BatchRequest{
			Table:       table,
			CompoundCol: c.DefaultPostForm("smiles_col", pipeline.DefaultCompoundCol),
			SequenceCol: c.DefaultPostForm("protein_col", pipeline.DefaultSequenceCol),
		})
		if err != nil {
			s.fail(c, jobPredict, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":       msgPredictSuccess,
			"total_records": res.TotalRecords,
			"preview":       res.Preview,
			"full_data":     res.FullData,
		})
		return
	}

	v, err := s.predictor.PredictOne(c.Request.Context(), modelPath, pipeline.SingleRequest{Compound: compound, Sequence: sequence})
	if err != nil {
		s.fail(c, jobPredict, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgPredictSuccess, "prediction": v})
}

// uploadName keeps the extension of an uploaded file name, which decides how the model is
// located.
func uploadName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := archive.SanitizeName(strings.TrimSuffix(base, filepath.Ext(base)))
	return stem + ext
}

// list returns the stored artifacts of kind, oldest first.
func (s *Server) list(kind storage.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := s.storage.List(kind)
		if err != nil {
			s.fail(c, "list", err)
			return
		}
		files := make([]gin.H, 0, len(entries))
		for _, e := range entries {
			files = append(files, gin.H{
				"job_id":     e.JobID,
				"name":       e.Name,
				"size":       e.Size,
				"created_at": e.CreatedAt,
				"url":        s.storage.URL(kind, e.Name),
			})
		}
		c.JSON(http.StatusOK, gin.H{"files": files})
	}
}

// download streams a stored artifact.
func (s *Server) download(kind storage.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		rc, err := s.storage.Open(kind, name)
		if err != nil {
			s.mediaError(c, err)
			return
		}
		defer rc.Close()

		size := int64(-1)
		if f, ok := rc.(*os.File); ok {
			info, err := f.Stat()
			if err != nil || info.IsDir() {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			size = info.Size()
		}
		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		var headers map[string]string
		if kind == storage.KindModel {
			headers = map[string]string{"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name)}
		}
		c.DataFromReader(http.StatusOK, size, contentType, rc, headers)
	}
}

// remove deletes a stored artifact.
func (s *Server) remove(kind storage.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.storage.Delete(kind, c.Param("name")); err != nil {
			s.mediaError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "deleted", "name": c.Param("name")})
	}
}

func (s *Server) mediaError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.KindOf(err) == errors.KindClient:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("Media request failed", err, log.PathKey, c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
