package controller

import (
	"learning_platform/internal/service"
	"learning_platform/internal/util"

	"github.com/gin-gonic/gin"
)

// CourseController 课程编辑与学习相关接口
type CourseController struct {
	Courses *service.CourseService
}

func NewCourseController(courses *service.CourseService) *CourseController {
	return &CourseController{Courses: courses}
}

type TitleRequest struct {
	Title string `json:"title" binding:"required" example:"第一章 基础语法"`
}

type PublishRequest struct {
	Published bool `json:"published" example:"true"`
}

type ReorderRequest struct {
	TopicIDs []uint `json:"topicIds" binding:"required" swaggertype:"array,number" example:"3,1,2"`
}

// SubmitTestRequest answers 的 key 为题目 ID
type SubmitTestRequest struct {
	Answers map[uint]string `json:"answers" binding:"required"`
}

type StudySessionRequest struct {
	CourseID *uint `json:"courseId" example:"1"`
	Minutes  int   `json:"minutes" binding:"required" example:"30"`
}

func actor(c *gin.Context) (service.Actor, bool) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return service.Actor{}, false
	}
	return service.ActorFromClaims(claims), true
}

// ListCourses godoc
// @Summary 已发布课程列表
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(20)
// @Param search query string false "标题关键字"
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]model.Course}}
// @Router /api/courses [get]
func (ctrl *CourseController) ListCourses(c *gin.Context) {
	page, limit := util.GetPagination(c)
	list, total, err := ctrl.Courses.ListPublishedCourses(c.Request.Context(), page, limit, c.Query("search"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Page(c, list, total, page, limit)
}

// GetCourse godoc
// @Summary 课程详情
// @Description 返回章节、小节与资料，资料链接已解析
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response
// @Router /api/courses/{id} [get]
func (ctrl *CourseController) GetCourse(c *gin.Context) {
	viewer, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	course, err := ctrl.Courses.GetCourseTree(c.Request.Context(), viewer, id)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, course)
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.CourseRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course}
// @Router /api/teacher/courses [post]
func (ctrl *CourseController) CreateCourse(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	course, err := ctrl.Courses.CreateCourse(c.Request.Context(), a, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, course)
}

// UpdateCourse godoc
// @Summary 更新课程
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param request body service.CourseRequest true "课程信息"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 403 {object} util.Response
// @Router /api/teacher/courses/{id} [put]
func (ctrl *CourseController) UpdateCourse(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	course, err := ctrl.Courses.UpdateCourse(c.Request.Context(), a, id, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, course)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Tags 课程编辑
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/courses/{id} [delete]
func (ctrl *CourseController) DeleteCourse(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ctrl.Courses.DeleteCourse(c.Request.Context(), a, id); err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, nil)
}

// PublishCourse godoc
// @Summary 发布或下架课程
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param request body PublishRequest true "发布状态"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/teacher/courses/{id}/publish [put]
func (ctrl *CourseController) PublishCourse(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	course, err := ctrl.Courses.PublishCourse(c.Request.Context(), a, id, req.Published)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, course)
}

// AddTopic godoc
// @Summary 添加章节
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param request body TitleRequest true "章节标题"
// @Success 201 {object} util.Response{data=model.Topic}
// @Router /api/teacher/courses/{id}/topics [post]
func (ctrl *CourseController) AddTopic(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req TitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	topic, err := ctrl.Courses.AddTopic(c.Request.Context(), a, id, req.Title)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, topic)
}

// ReorderTopics godoc
// @Summary 调整章节顺序
// @Description topicIds 必须恰好包含课程的全部章节
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param request body ReorderRequest true "新的章节顺序"
// @Success 200 {object} util.Response
// @Router /api/teacher/courses/{id}/topics/order [put]
func (ctrl *CourseController) ReorderTopics(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	if err := ctrl.Courses.ReorderTopics(c.Request.Context(), a, id, req.TopicIDs); err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, nil)
}

// AddSubtopic godoc
// @Summary 添加小节
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "章节ID"
// @Param request body TitleRequest true "小节标题"
// @Success 201 {object} util.Response{data=model.Subtopic}
// @Router /api/teacher/topics/{id}/subtopics [post]
func (ctrl *CourseController) AddSubtopic(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req TitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	sub, err := ctrl.Courses.AddSubtopic(c.Request.Context(), a, id, req.Title)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, sub)
}

// AddMaterial godoc
// @Summary 添加学习资料
// @Description 资料只引用对象存储 key 或外部链接
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "小节ID"
// @Param request body service.MaterialRequest true "资料"
// @Success 201 {object} util.Response{data=model.Material}
// @Router /api/teacher/subtopics/{id}/materials [post]
func (ctrl *CourseController) AddMaterial(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.MaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	m, err := ctrl.Courses.AddMaterial(c.Request.Context(), a, id, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, m)
}

// UpdateMaterial godoc
// @Summary 更新学习资料
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "资料ID"
// @Param request body service.MaterialRequest true "资料"
// @Success 200 {object} util.Response{data=model.Material}
// @Router /api/teacher/materials/{id} [put]
func (ctrl *CourseController) UpdateMaterial(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.MaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	m, err := ctrl.Courses.UpdateMaterial(c.Request.Context(), a, id, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, m)
}

// DeleteMaterial godoc
// @Summary 删除学习资料
// @Tags 课程编辑
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "资料ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/materials/{id} [delete]
func (ctrl *CourseController) DeleteMaterial(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ctrl.Courses.DeleteMaterial(c.Request.Context(), a, id); err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, nil)
}

// CreateTest godoc
// @Summary 创建测验
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param request body service.CreateTestRequest true "测验"
// @Success 201 {object} util.Response{data=model.Test}
// @Router /api/teacher/courses/{id}/tests [post]
func (ctrl *CourseController) CreateTest(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	test, err := ctrl.Courses.CreateTest(c.Request.Context(), a, id, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, test)
}

// Enroll godoc
// @Summary 选课
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 409 {object} util.Response "已选课"
// @Router /api/courses/{id}/enroll [post]
func (ctrl *CourseController) Enroll(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	enrollment, err := ctrl.Courses.Enroll(c.Request.Context(), a.UserID, id)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, enrollment)
}

// ListMyCourses godoc
// @Summary 我的课程
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]repository.EnrolledCourse}
// @Router /api/courses/mine [get]
func (ctrl *CourseController) ListMyCourses(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	list, err := ctrl.Courses.ListEnrolledCourses(c.Request.Context(), a.UserID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, list)
}

// CompleteMaterial godoc
// @Summary 完成学习资料
// @Description 更新课程进度，进度满且测验全部通过时结业
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "资料ID"
// @Success 200 {object} util.Response{data=service.CourseProgress}
// @Router /api/materials/{id}/complete [post]
func (ctrl *CourseController) CompleteMaterial(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	progress, err := ctrl.Courses.CompleteMaterial(c.Request.Context(), a.UserID, id)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, progress)
}

// GetTest godoc
// @Summary 获取测验
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Test}
// @Router /api/tests/{id} [get]
func (ctrl *CourseController) GetTest(c *gin.Context) {
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	test, err := ctrl.Courses.GetTest(c.Request.Context(), id)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, test)
}

// SubmitTest godoc
// @Summary 提交测验
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param request body SubmitTestRequest true "答案"
// @Success 200 {object} util.Response{data=service.TestSubmission}
// @Failure 409 {object} util.Response "超过最大作答次数"
// @Router /api/tests/{id}/submit [post]
func (ctrl *CourseController) SubmitTest(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req SubmitTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	result, err := ctrl.Courses.SubmitTest(c.Request.Context(), a.UserID, id, req.Answers)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, result)
}

// RecordStudySession godoc
// @Summary 记录学习时长
// @Tags 课程
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body StudySessionRequest true "学习时长"
// @Success 200 {object} util.Response{data=service.AwardResult}
// @Router /api/study-sessions [post]
func (ctrl *CourseController) RecordStudySession(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req StudySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	result, err := ctrl.Courses.RecordStudySession(c.Request.Context(), a.UserID, req.CourseID, req.Minutes)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, result)
}
