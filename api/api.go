package api

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"time"

	"bankiq/internal/app"
	"bankiq/internal/logger"
	"bankiq/internal/repository"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ApiHandler struct {
	Db                   *sql.DB
	AnalysisHandler      *app.AnalysisHandler
	CustomerRepository   repository.CustomerRepository
	CsvRepository        repository.CsvCustomerRepository
	GptRepository        repository.GptRepository
	ApiRequestRepository repository.ApiRequestRepository
	JwtSigningKey        string
}

func (m *ApiHandler) InitializeRouterEngine() *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(m.logRequestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to bankiq"})
	})
	router.POST("/runAnalysis", m.authMiddleware, m.runAnalysis)
	router.GET("/segments", m.segments)
	router.GET("/associationRules", m.associationRules)
	router.POST("/recommendations", m.recommendations)
	router.GET("/highValueModel", m.highValueModel)
	router.POST("/scoreCustomers", m.scoreCustomers)
	router.POST("/explainCustomers", m.explainCustomers)
	router.GET("/assetTrend", m.assetTrend)
	router.POST("/chat", m.authMiddleware, m.chat)

	return router
}

func (m *ApiHandler) StartApi(port int) error {
	router := m.InitializeRouterEngine()
	return router.Run(fmt.Sprintf(":%d", port))
}

func returnErrorJson(err error, c *gin.Context) {
	returnErrorJsonCode(err, c, 500)
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	logger.FromContext(c).Errorw("request failed", "error", err.Error(), "route", c.Request.URL.Path)
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r responseBodyWriter) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (m *ApiHandler) logRequestMiddleware(ctx *gin.Context) {
	log := zap.S()
	ctx.Set(logger.ContextKey, log)

	w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: ctx.Writer}
	ctx.Writer = w

	body, err := ctx.GetRawData()
	if err != nil {
		log.Warnw("failed to get raw request body", "error", err)
	}
	ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

	start := time.Now().UTC()

	var tracked *repository.ApiRequest
	if m.Db != nil && m.ApiRequestRepository != nil {
		tracked, err = m.ApiRequestRepository.Add(m.Db, repository.ApiRequest{
			Method:      ctx.Request.Method,
			Route:       ctx.Request.URL.Path,
			RequesterIP: ctx.ClientIP(),
			StartTs:     start,
		})
		if err != nil {
			log.Warnw("failed to track API request", "error", err)
		}
	}

	ctx.Next()

	durationMs := time.Since(start).Milliseconds()
	log.Infow("request handled",
		"method", ctx.Request.Method,
		"route", ctx.Request.URL.Path,
		"status", ctx.Writer.Status(),
		"durationMs", durationMs,
		"ip", ctx.ClientIP(),
	)

	if tracked != nil {
		status := int32(ctx.Writer.Status())
		tracked.StatusCode = &status
		tracked.DurationMs = &durationMs
		if err := m.ApiRequestRepository.Update(m.Db, *tracked); err != nil {
			log.Warnw("failed to record API request outcome", "error", err)
		}
	}
}
