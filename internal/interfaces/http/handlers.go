package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/service"
	"github.com/finovate/expenseflow/internal/auth"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	authenticator  *auth.Authenticator
	expenseService service.ExpenseService
	orgService     service.OrganizationService
	userService    service.UserService
	receiptService service.ReceiptService
	reportService  service.ReportService
	logger         *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	authenticator *auth.Authenticator,
	expenseService service.ExpenseService,
	orgService service.OrganizationService,
	userService service.UserService,
	receiptService service.ReceiptService,
	reportService service.ReportService,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		authenticator:  authenticator,
		expenseService: expenseService,
		orgService:     orgService,
		userService:    userService,
		receiptService: receiptService,
		reportService:  reportService,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// respondError maps domain errors onto HTTP status codes
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, entity.ErrValidation):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, entity.ErrAuthorization):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, entity.ErrInvalidState), errors.Is(err, entity.ErrConflict):
		status = http.StatusConflict
		message = err.Error()
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, Response{Success: false, Error: message})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- auth ---

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "email and password are required"})
		return
	}

	token, user, err := h.authenticator.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Auth failures are 401 at the login endpoint, not 403
		if errors.Is(err, entity.ErrAuthorization) {
			c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "invalid credentials"})
			return
		}
		h.respondError(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"token": token,
		"user":  toUserResponse(user),
	})
}

// --- organizations ---

type createOrganizationRequest struct {
	Name          string `json:"name" binding:"required"`
	BaseCurrency  string `json:"base_currency" binding:"required"`
	AdminEmail    string `json:"admin_email" binding:"required"`
	AdminName     string `json:"admin_name" binding:"required"`
	AdminPassword string `json:"admin_password" binding:"required"`
}

// CreateOrganization handles POST /api/organizations. The request also
// provisions the initial admin account; the caller logs in with it to reach
// every other route.
func (h *Handlers) CreateOrganization(c *gin.Context) {
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "name, base_currency and admin account fields are required"})
		return
	}

	org, admin, err := h.orgService.CreateOrganization(c.Request.Context(), service.CreateOrganizationInput{
		Name:          req.Name,
		BaseCurrency:  req.BaseCurrency,
		AdminEmail:    req.AdminEmail,
		AdminName:     req.AdminName,
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{
		"organization": org,
		"admin":        toUserResponse(admin),
	})
}

// GetOrganization handles GET /api/organizations/:id
func (h *Handlers) GetOrganization(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	org, err := h.orgService.GetOrganization(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, org)
}

type updateSettingsRequest struct {
	IsManagerApproverEnabled bool            `json:"is_manager_approver_enabled"`
	MaxExpenseAmount         decimal.Decimal `json:"max_expense_amount"`
	AutoApprovalLimit        decimal.Decimal `json:"auto_approval_limit"`
}

// UpdateSettings handles PUT /api/organizations/:id/settings
func (h *Handlers) UpdateSettings(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid settings payload"})
		return
	}

	settings := entity.OrgSettings{
		IsManagerApproverEnabled: req.IsManagerApproverEnabled,
		MaxExpenseAmount:         req.MaxExpenseAmount,
		AutoApprovalLimit:        req.AutoApprovalLimit,
	}
	if err := h.orgService.UpdateSettings(c.Request.Context(), c.Param("id"), settings); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, settings)
}

// --- categories ---

type addCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddCategory handles POST /api/organizations/:id/categories
func (h *Handlers) AddCategory(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	var req addCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "name is required"})
		return
	}

	category, err := h.orgService.AddCategory(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, category)
}

// ListCategories handles GET /api/organizations/:id/categories
func (h *Handlers) ListCategories(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	categories, err := h.orgService.ListCategories(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, categories)
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetCategoryActive handles PUT /api/organizations/:id/categories/:categoryID/active
func (h *Handlers) SetCategoryActive(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "active is required"})
		return
	}
	if err := h.orgService.SetCategoryActive(c.Request.Context(), c.Param("id"), c.Param("categoryID"), *req.Active); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// --- approval rules ---

type addRuleRequest struct {
	Name       string                `json:"name" binding:"required"`
	Type       string                `json:"type" binding:"required"`
	Percentage int                   `json:"percentage"`
	Approvers  []entity.RuleApprover `json:"approvers"`
	MinAmount  decimal.Decimal       `json:"min_amount"`
	MaxAmount  *decimal.Decimal      `json:"max_amount"`
	Categories []string              `json:"categories"`
}

// AddRule handles POST /api/organizations/:id/rules
func (h *Handlers) AddRule(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	var req addRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid rule payload"})
		return
	}

	rule := &entity.ApprovalRule{
		OrganizationID: c.Param("id"),
		Name:           req.Name,
		Type:           entity.RuleType(req.Type),
		Percentage:     req.Percentage,
		Approvers:      req.Approvers,
		MinAmount:      req.MinAmount,
		MaxAmount:      req.MaxAmount,
		Categories:     req.Categories,
	}
	created, err := h.orgService.AddRule(c.Request.Context(), rule)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, created)
}

// ListRules handles GET /api/organizations/:id/rules
func (h *Handlers) ListRules(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	rules, err := h.orgService.ListRules(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, rules)
}

// SetRuleActive handles PUT /api/organizations/:id/rules/:ruleID/active
func (h *Handlers) SetRuleActive(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "active is required"})
		return
	}
	if err := h.orgService.SetRuleActive(c.Request.Context(), c.Param("id"), c.Param("ruleID"), *req.Active); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// --- users ---

type createUserRequest struct {
	Email     string  `json:"email" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Password  string  `json:"password" binding:"required"`
	Role      string  `json:"role" binding:"required"`
	ManagerID *string `json:"manager_id"`
}

type userResponse struct {
	ID             string  `json:"id"`
	OrganizationID string  `json:"organization_id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	ManagerID      *string `json:"manager_id,omitempty"`
	IsActive       bool    `json:"is_active"`
}

func toUserResponse(user *entity.User) userResponse {
	return userResponse{
		ID:             user.ID,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           string(user.Role),
		ManagerID:      user.ManagerID,
		IsActive:       user.IsActive,
	}
}

// CreateUser handles POST /api/users. Members always land in the caller's
// organization.
func (h *Handlers) CreateUser(c *gin.Context) {
	claims := claimsFrom(c)
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "email, name, password and role are required"})
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), service.CreateUserInput{
		OrganizationID: claims.OrganizationID,
		Email:          req.Email,
		Name:           req.Name,
		Password:       req.Password,
		Role:           entity.Role(req.Role),
		ManagerID:      req.ManagerID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, toUserResponse(user))
}

// GetUser handles GET /api/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.sameOrg(c, user.OrganizationID) {
		return
	}
	ok(c, http.StatusOK, toUserResponse(user))
}

// ListUsers handles GET /api/organizations/:id/users
func (h *Handlers) ListUsers(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	users, err := h.userService.ListUsers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	ok(c, http.StatusOK, out)
}

type assignManagerRequest struct {
	ManagerID *string `json:"manager_id"`
}

// AssignManager handles PUT /api/users/:id/manager
func (h *Handlers) AssignManager(c *gin.Context) {
	var req assignManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid payload"})
		return
	}
	if err := h.userService.AssignManager(c.Request.Context(), c.Param("id"), req.ManagerID); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// SetUserActive handles PUT /api/users/:id/active
func (h *Handlers) SetUserActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "active is required"})
		return
	}
	if err := h.userService.SetActive(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// --- expenses ---

type createExpenseRequest struct {
	Title        string          `json:"title" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	CurrencyCode string          `json:"currency_code" binding:"required"`
	Category     string          `json:"category" binding:"required"`
	ExpenseDate  string          `json:"expense_date" binding:"required"` // YYYY-MM-DD
	Merchant     string          `json:"merchant"`
}

type expenseResponse struct {
	ID              string                  `json:"id"`
	OrganizationID  string                  `json:"organization_id"`
	EmployeeID      string                  `json:"employee_id"`
	Title           string                  `json:"title"`
	Amount          string                  `json:"amount"`
	CurrencyCode    string                  `json:"currency_code"`
	Rate            string                  `json:"rate"`
	ConvertedAmount string                  `json:"converted_amount"`
	Category        string                  `json:"category"`
	Merchant        string                  `json:"merchant,omitempty"`
	ExpenseDate     string                  `json:"expense_date"`
	Status          string                  `json:"status"`
	Workflow        entity.ApprovalWorkflow `json:"workflow"`
	CurrentApprover string                  `json:"current_approver,omitempty"`
	SubmittedAt     *time.Time              `json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time              `json:"approved_at,omitempty"`
	RejectedAt      *time.Time              `json:"rejected_at,omitempty"`
	Version         int64                   `json:"version"`
}

func toExpenseResponse(e *entity.Expense) expenseResponse {
	resp := expenseResponse{
		ID:              e.ID,
		OrganizationID:  e.OrganizationID,
		EmployeeID:      e.EmployeeID,
		Title:           e.Title,
		Amount:          e.Amount.String(),
		CurrencyCode:    e.CurrencyCode,
		Rate:            e.Rate.String(),
		ConvertedAmount: e.ConvertedAmount.String(),
		Category:        e.Category,
		Merchant:        e.Merchant,
		ExpenseDate:     e.ExpenseDate.Format("2006-01-02"),
		Status:          string(e.Status),
		Workflow:        e.Workflow,
		SubmittedAt:     e.SubmittedAt,
		ApprovedAt:      e.ApprovedAt,
		RejectedAt:      e.RejectedAt,
		Version:         e.Version,
	}
	if e.Status == entity.StatusPendingApproval {
		if step := e.Workflow.ActiveStep(); step != nil {
			resp.CurrentApprover = step.ApproverID
		}
	}
	return resp
}

// CreateExpense handles POST /api/expenses
func (h *Handlers) CreateExpense(c *gin.Context) {
	claims := claimsFrom(c)
	var req createExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid expense payload"})
		return
	}
	expenseDate, err := time.Parse("2006-01-02", req.ExpenseDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "expense_date must be YYYY-MM-DD"})
		return
	}

	expense, err := h.expenseService.CreateExpense(c.Request.Context(), service.CreateExpenseInput{
		EmployeeID:     claims.UserID,
		OrganizationID: claims.OrganizationID,
		Title:          req.Title,
		Amount:         req.Amount,
		CurrencyCode:   req.CurrencyCode,
		Category:       req.Category,
		ExpenseDate:    expenseDate,
		Merchant:       req.Merchant,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, toExpenseResponse(expense))
}

// GetExpense handles GET /api/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	expense, err := h.loadVisibleExpense(c)
	if err != nil {
		return
	}
	ok(c, http.StatusOK, toExpenseResponse(expense))
}

// SubmitExpense handles POST /api/expenses/:id/submit
func (h *Handlers) SubmitExpense(c *gin.Context) {
	claims := claimsFrom(c)
	expense, err := h.expenseService.SubmitExpense(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, toExpenseResponse(expense))
}

type decisionRequest struct {
	Comments string `json:"comments"`
}

// ApproveExpense handles POST /api/expenses/:id/approve
func (h *Handlers) ApproveExpense(c *gin.Context) {
	claims := claimsFrom(c)
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid payload"})
		return
	}

	expense, err := h.expenseService.ApproveExpense(c.Request.Context(), c.Param("id"), claims.UserID, req.Comments)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, toExpenseResponse(expense))
}

// RejectExpense handles POST /api/expenses/:id/reject
func (h *Handlers) RejectExpense(c *gin.Context) {
	claims := claimsFrom(c)
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid payload"})
		return
	}

	expense, err := h.expenseService.RejectExpense(c.Request.Context(), c.Param("id"), claims.UserID, req.Comments)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, toExpenseResponse(expense))
}

// ReimburseExpense handles POST /api/expenses/:id/reimburse
func (h *Handlers) ReimburseExpense(c *gin.Context) {
	expense, err := h.expenseService.MarkReimbursed(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, toExpenseResponse(expense))
}

// ListMyExpenses handles GET /api/expenses
func (h *Handlers) ListMyExpenses(c *gin.Context) {
	claims := claimsFrom(c)
	limit, offset := pagination(c)
	expenses, err := h.expenseService.ListByEmployee(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, toExpenseResponses(expenses))
}

// ListOrganizationExpenses handles GET /api/organizations/:id/expenses
func (h *Handlers) ListOrganizationExpenses(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	limit, offset := pagination(c)
	expenses, err := h.expenseService.ListByOrganization(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, toExpenseResponses(expenses))
}

// ListPendingApprovals handles GET /api/approvals/pending
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	claims := claimsFrom(c)
	limit, offset := pagination(c)
	expenses, err := h.expenseService.ListPendingForApprover(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, toExpenseResponses(expenses))
}

// CanApprove handles GET /api/expenses/:id/can-approve. It answers for the
// authenticated caller only.
func (h *Handlers) CanApprove(c *gin.Context) {
	claims := claimsFrom(c)
	if _, err := h.loadVisibleExpense(c); err != nil {
		return
	}
	allowed, err := h.expenseService.CanApprove(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"can_approve": allowed})
}

// GetCurrentApprover handles GET /api/expenses/:id/current-approver
func (h *Handlers) GetCurrentApprover(c *gin.Context) {
	if _, err := h.loadVisibleExpense(c); err != nil {
		return
	}
	approverID, err := h.expenseService.CurrentApprover(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"current_approver": approverID})
}

// GetExpenseHistory handles GET /api/expenses/:id/history
func (h *Handlers) GetExpenseHistory(c *gin.Context) {
	if _, err := h.loadVisibleExpense(c); err != nil {
		return
	}
	history, err := h.expenseService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, history)
}

// --- notes ---

type addNoteRequest struct {
	Body string `json:"body" binding:"required"`
}

// AddNote handles POST /api/expenses/:id/notes
func (h *Handlers) AddNote(c *gin.Context) {
	claims := claimsFrom(c)
	if _, err := h.loadVisibleExpense(c); err != nil {
		return
	}
	var req addNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "body is required"})
		return
	}

	note, err := h.expenseService.AddNote(c.Request.Context(), c.Param("id"), claims.UserID, req.Body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, note)
}

// ListNotes handles GET /api/expenses/:id/notes
func (h *Handlers) ListNotes(c *gin.Context) {
	if _, err := h.loadVisibleExpense(c); err != nil {
		return
	}
	notes, err := h.expenseService.ListNotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, notes)
}

// --- receipts ---

// UploadReceipt handles POST /api/expenses/:id/receipts (multipart form,
// field "file")
func (h *Handlers) UploadReceipt(c *gin.Context) {
	if _, err := h.loadVisibleExpense(c); err != nil {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.respondError(c, err)
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	attachment, err := h.receiptService.Upload(c.Request.Context(), c.Param("id"), fileHeader.Filename, mimeType, data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, attachment)
}

// ListReceipts handles GET /api/expenses/:id/receipts
func (h *Handlers) ListReceipts(c *gin.Context) {
	if _, err := h.loadVisibleExpense(c); err != nil {
		return
	}
	attachments, err := h.receiptService.ListByExpense(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, attachments)
}

// --- reports ---

// GetReportSummary handles GET /api/organizations/:id/reports/summary
func (h *Handlers) GetReportSummary(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	from, to, err := reportPeriod(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	summary, err := h.reportService.Summary(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, summary)
}

// ExportReport handles GET /api/organizations/:id/reports/export
func (h *Handlers) ExportReport(c *gin.Context) {
	if !h.sameOrg(c, c.Param("id")) {
		return
	}
	from, to, err := reportPeriod(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	org, err := h.orgService.GetOrganization(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	data, err := h.reportService.ExportWorkbook(c.Request.Context(), org.ID, org.Name, from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}

	fileName := "expenses_" + from.Format("20060102") + "_" + to.Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// --- helpers ---

// sameOrg rejects cross-organization access. Writes the error response and
// returns false when the caller belongs to a different organization.
func (h *Handlers) sameOrg(c *gin.Context, orgID string) bool {
	claims := claimsFrom(c)
	if claims == nil || claims.OrganizationID != orgID {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "organization mismatch"})
		return false
	}
	return true
}

// loadVisibleExpense loads the expense and enforces visibility: the owner,
// any listed approver, and admin roles may see it. Writes the error response
// on failure.
func (h *Handlers) loadVisibleExpense(c *gin.Context) (*entity.Expense, error) {
	claims := claimsFrom(c)
	expense, err := h.expenseService.GetExpense(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, err
	}
	if expense.OrganizationID != claims.OrganizationID {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "organization mismatch"})
		return nil, entity.ErrAuthorization
	}
	if expense.EmployeeID == claims.UserID || claims.Role == entity.RoleAdmin {
		return expense, nil
	}
	for _, step := range expense.Workflow.Steps {
		if step.ApproverID == claims.UserID {
			return expense, nil
		}
	}
	c.JSON(http.StatusForbidden, Response{Success: false, Error: "not visible to this user"})
	return nil, entity.ErrAuthorization
}

func toExpenseResponses(expenses []*entity.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	return out
}

func pagination(c *gin.Context) (limit, offset int) {
	var q struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	_ = c.ShouldBindQuery(&q)
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q.Limit, q.Offset
}

func reportPeriod(c *gin.Context) (time.Time, time.Time, error) {
	var q struct {
		From string `form:"from"`
		To   string `form:"to"`
	}
	_ = c.ShouldBindQuery(&q)

	now := time.Now().UTC()
	from := now.AddDate(0, -1, 0)
	to := now

	var err error
	if q.From != "" {
		if from, err = time.Parse("2006-01-02", q.From); err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
		}
	}
	if q.To != "" {
		if to, err = time.Parse("2006-01-02", q.To); err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
		}
		// Include the whole final day
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not precede from")
	}
	return from, to, nil
}
