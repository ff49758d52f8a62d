package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mes-platform/production-service/internal/application"
	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/middleware"
)

// Handlers binds the application services to the HTTP surface
type Handlers struct {
	stages    *application.StageApplicationService
	qc        *application.QCApplicationService
	defects   *application.DefectApplicationService
	scheduler *application.SchedulerApplicationService
	capacity  *application.CapacityApplicationService
	logger    *slog.Logger
}

// NewHandlers creates the handler set
func NewHandlers(
	stages *application.StageApplicationService,
	qc *application.QCApplicationService,
	defects *application.DefectApplicationService,
	scheduler *application.SchedulerApplicationService,
	capacity *application.CapacityApplicationService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		stages:    stages,
		qc:        qc,
		defects:   defects,
		scheduler: scheduler,
		capacity:  capacity,
		logger:    logger,
	}
}

// RegisterRoutes mounts the API routes on the router
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	orders := v1.Group("/orders")
	{
		orders.POST("/:orderId/release", h.releaseOrder)
		orders.GET("/:orderId/stages", h.listStages)
	}

	stages := v1.Group("/stages")
	{
		stages.GET("/:stageId", h.getStage)
		stages.POST("/:stageId/start", h.startStage)
		stages.POST("/:stageId/pause", h.pauseStage)
		stages.POST("/:stageId/resume", h.resumeStage)
		stages.POST("/:stageId/progress", h.updateProgress)
		stages.POST("/:stageId/complete", h.completeStage)
		stages.POST("/:stageId/cancel", h.cancelStage)
		stages.POST("/:stageId/rework", h.startRework)
		stages.GET("/:stageId/qc-sessions", h.listQCSessions)
		stages.POST("/:stageId/defect", h.handleDefect)
		stages.POST("/:stageId/auto-assign", h.autoAssign)
		stages.POST("/:stageId/conflicts", h.checkConflicts)
	}

	qc := v1.Group("/qc")
	{
		qc.POST("/sessions", h.startQCSession)
		qc.POST("/sessions/:sessionId/submit", h.submitQCSession)
	}

	requisitions := v1.Group("/requisitions")
	{
		requisitions.GET("/pending", h.listPendingRequisitions)
		requisitions.POST("/:requisitionId/approve", h.approveRequisition)
		requisitions.POST("/:requisitionId/reject", h.rejectRequisition)
	}

	scheduler := v1.Group("/scheduler")
	{
		scheduler.POST("/suggest", h.suggestMachines)
	}

	v1.POST("/capacity/estimate", h.estimateCapacity)

	machines := v1.Group("/machines")
	{
		machines.GET("", h.listMachines)
		machines.GET("/:machineId", h.getMachine)
	}
}

// actor extracts the acting user from the X-Actor-ID header; every
// mutating endpoint requires one
func (h *Handlers) actor(c *gin.Context) (string, bool) {
	actorID := middleware.GetActorID(c)
	if actorID == "" {
		middleware.NewErrorResponder(c, h.logger).RespondBadRequest("X-Actor-ID header is required")
		return "", false
	}
	return actorID, true
}

type releaseStageRequest struct {
	ProcessType      string     `json:"processType" binding:"required,process_type"`
	ProductID        string     `json:"productId"`
	RequiredQuantity float64    `json:"requiredQuantity" binding:"required,gt=0"`
	PlannedStart     *time.Time `json:"plannedStart"`
	PlannedEnd       *time.Time `json:"plannedEnd"`
	LeaderID         string     `json:"leaderId"`
	OperatorID       string     `json:"operatorId"`
	QCAssigneeID     string     `json:"qcAssigneeId"`
}

type releaseOrderRequest struct {
	Stages []releaseStageRequest `json:"stages" binding:"required,min=1,dive"`
}

func (h *Handlers) releaseOrder(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req releaseOrderRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	cmd := application.ReleaseOrderCommand{
		OrderID: c.Param("orderId"),
		ActorID: actorID,
	}
	for _, stage := range req.Stages {
		cmd.Stages = append(cmd.Stages, application.StageInput{
			ProcessType:      stage.ProcessType,
			ProductID:        stage.ProductID,
			RequiredQuantity: stage.RequiredQuantity,
			PlannedStart:     stage.PlannedStart,
			PlannedEnd:       stage.PlannedEnd,
			LeaderID:         stage.LeaderID,
			OperatorID:       stage.OperatorID,
			QCAssigneeID:     stage.QCAssigneeID,
		})
	}

	stages, err := h.stages.ReleaseOrder(c.Request.Context(), cmd)
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": stages})
}

func (h *Handlers) listStages(c *gin.Context) {
	stages, err := h.stages.ListStages(c.Request.Context(), application.ListStagesQuery{OrderID: c.Param("orderId")})
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stages})
}

func (h *Handlers) getStage(c *gin.Context) {
	stage, err := h.stages.GetStage(c.Request.Context(), application.GetStageQuery{StageID: c.Param("stageId")})
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stage})
}

func (h *Handlers) startStage(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	stage, err := h.stages.StartStage(c.Request.Context(), application.StartStageCommand{
		StageID: c.Param("stageId"),
		ActorID: actorID,
	})
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stage})
}

type pauseStageRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handlers) pauseStage(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req pauseStageRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	stage, err := h.stages.PauseStage(c.Request.Context(), application.PauseStageCommand{
		StageID: c.Param("stageId"),
		ActorID: actorID,
		Reason:  req.Reason,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stage})
}

func (h *Handlers) resumeStage(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	stage, err := h.stages.ResumeStage(c.Request.Context(), application.ResumeStageCommand{
		StageID: c.Param("stageId"),
		ActorID: actorID,
	})
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stage})
}

type updateProgressRequest struct {
	Percent float64 `json:"percent" binding:"progress_pct"`
}

func (h *Handlers) updateProgress(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req updateProgressRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	stage, err := h.stages.UpdateProgress(c.Request.Context(), application.UpdateProgressCommand{
		StageID: c.Param("stageId"),
		ActorID: actorID,
		Percent: req.Percent,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stage})
}

type completeStageRequest struct {
	OutputQuantity float64 `json:"outputQuantity" binding:"required,gt=0"`
}

func (h *Handlers) completeStage(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req completeStageRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	stage, err := h.stages.CompleteStage(c.Request.Context(), application.CompleteStageCommand{
		StageID:        c.Param("stageId"),
		ActorID:        actorID,
		OutputQuantity: req.OutputQuantity,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stage})
}

type cancelStageRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handlers) cancelStage(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req cancelStageRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	stage, err := h.stages.CancelStage(c.Request.Context(), application.CancelStageCommand{
		StageID: c.Param("stageId"),
		ActorID: actorID,
		Reason:  req.Reason,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stage})
}

func (h *Handlers) startRework(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	stage, err := h.stages.StartRework(c.Request.Context(), application.StartReworkCommand{
		StageID: c.Param("stageId"),
		ActorID: actorID,
	})
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stage})
}

type startQCSessionRequest struct {
	StageID string `json:"stageId" binding:"required"`
}

func (h *Handlers) startQCSession(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req startQCSessionRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	session, err := h.qc.StartSession(c.Request.Context(), application.StartQCSessionCommand{
		StageID: req.StageID,
		ActorID: actorID,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": session})
}

type checkpointRequest struct {
	Criterion string `json:"criterion" binding:"required"`
	Passed    bool   `json:"passed"`
	Note      string `json:"note"`
}

type submitQCSessionRequest struct {
	OverallResult     string              `json:"overallResult" binding:"required,qc_result"`
	Checkpoints       []checkpointRequest `json:"checkpoints" binding:"dive"`
	Notes             string              `json:"notes"`
	DefectSeverity    string              `json:"defectSeverity" binding:"omitempty,defect_severity"`
	DefectDescription string              `json:"defectDescription"`
}

func (h *Handlers) submitQCSession(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req submitQCSessionRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	cmd := application.SubmitQCSessionCommand{
		SessionID:         c.Param("sessionId"),
		ActorID:           actorID,
		OverallResult:     req.OverallResult,
		Notes:             req.Notes,
		DefectSeverity:    req.DefectSeverity,
		DefectDescription: req.DefectDescription,
	}
	for _, checkpoint := range req.Checkpoints {
		cmd.Checkpoints = append(cmd.Checkpoints, application.CheckpointInput{
			Criterion: checkpoint.Criterion,
			Passed:    checkpoint.Passed,
			Note:      checkpoint.Note,
		})
	}

	result, err := h.qc.SubmitSession(c.Request.Context(), cmd)
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *Handlers) listQCSessions(c *gin.Context) {
	sessions, err := h.qc.ListSessions(c.Request.Context(), c.Param("stageId"))
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

type handleDefectRequest struct {
	Decision string  `json:"decision" binding:"required,defect_decision"`
	Notes    string  `json:"notes"`
	Quantity float64 `json:"quantity" binding:"omitempty,gt=0"`
}

func (h *Handlers) handleDefect(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req handleDefectRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.defects.HandleDefect(c.Request.Context(), application.HandleDefectCommand{
		StageID:  c.Param("stageId"),
		ActorID:  actorID,
		Decision: req.Decision,
		Notes:    req.Notes,
		Quantity: req.Quantity,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *Handlers) listPendingRequisitions(c *gin.Context) {
	requisitions, err := h.defects.ListPendingRequisitions(c.Request.Context(), domain.DefaultPagination())
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": requisitions})
}

func (h *Handlers) approveRequisition(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	result, err := h.defects.ApproveRequisition(c.Request.Context(), application.DecideRequisitionCommand{
		RequisitionID: c.Param("requisitionId"),
		ActorID:       actorID,
	})
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *Handlers) rejectRequisition(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	requisition, err := h.defects.RejectRequisition(c.Request.Context(), application.DecideRequisitionCommand{
		RequisitionID: c.Param("requisitionId"),
		ActorID:       actorID,
	})
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": requisition})
}

type suggestMachinesRequest struct {
	ProcessType      string    `json:"processType" binding:"required,process_type"`
	ProductID        string    `json:"productId"`
	RequiredQuantity float64   `json:"requiredQuantity" binding:"required,gt=0"`
	WindowStart      time.Time `json:"windowStart" binding:"required"`
	WindowEnd        time.Time `json:"windowEnd" binding:"required"`
}

func (h *Handlers) suggestMachines(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)

	var req suggestMachinesRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	suggestions, err := h.scheduler.Suggest(c.Request.Context(), application.SuggestMachinesQuery{
		ProcessType:      req.ProcessType,
		ProductID:        req.ProductID,
		RequiredQuantity: req.RequiredQuantity,
		WindowStart:      req.WindowStart,
		WindowEnd:        req.WindowEnd,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": suggestions})
}

type windowRequest struct {
	WindowStart time.Time `json:"windowStart" binding:"required"`
	WindowEnd   time.Time `json:"windowEnd" binding:"required"`
}

func (h *Handlers) autoAssign(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req windowRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.scheduler.AutoAssign(c.Request.Context(), application.AutoAssignCommand{
		StageID:     c.Param("stageId"),
		ActorID:     actorID,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (h *Handlers) checkConflicts(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)

	var req windowRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	conflicts, err := h.scheduler.CheckConflicts(c.Request.Context(), application.CheckConflictsQuery{
		StageID:     c.Param("stageId"),
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"conflicts": conflicts}})
}

type estimateCapacityRequest struct {
	ProductID     string  `json:"productId"`
	TotalWeightKg float64 `json:"totalWeightKg" binding:"gte=0"`
	CutCount      float64 `json:"cutCount" binding:"gte=0"`
	SewCount      float64 `json:"sewCount" binding:"gte=0"`
	PackCount     float64 `json:"packCount" binding:"gte=0"`
}

func (h *Handlers) estimateCapacity(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger)

	var req estimateCapacityRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	estimate, err := h.capacity.Estimate(c.Request.Context(), application.EstimateCapacityQuery{
		ProductID:     req.ProductID,
		TotalWeightKg: req.TotalWeightKg,
		CutCount:      req.CutCount,
		SewCount:      req.SewCount,
		PackCount:     req.PackCount,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": estimate})
}

func (h *Handlers) listMachines(c *gin.Context) {
	query := application.ListMachinesQuery{ProcessType: c.Query("type")}
	result, err := h.scheduler.ListMachines(c.Request.Context(), query)
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) getMachine(c *gin.Context) {
	machine, err := h.scheduler.GetMachine(c.Request.Context(), application.GetMachineQuery{MachineID: c.Param("machineId")})
	if err != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": machine})
}
