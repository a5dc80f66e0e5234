package httpapi

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"classtrack/attendance/internal/auth"
	"classtrack/attendance/internal/crypto"
	"classtrack/attendance/internal/model"
)

type teacherSignUpRequest struct {
	TeacherID string                     `json:"teacherId"`
	Name      string                     `json:"name"`
	Email     string                     `json:"email"`
	Password  string                     `json:"password"`
	Subjects  []subjectAssignmentRequest `json:"subjects"`
}

type subjectAssignmentRequest struct {
	SubjectCode string   `json:"subjectCode"`
	Subgroups   []string `json:"subgroups"`
}

func (s *Server) handleTeacherSignUp(w http.ResponseWriter, r *http.Request) {
	var req teacherSignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.TeacherID == "" || req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "All fields are required.")
		return
	}

	exists, err := s.store.TeacherExists(r.Context(), req.TeacherID, req.Email)
	if err != nil {
		log.Printf("teacher sign-up lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if exists {
		respondError(w, http.StatusBadRequest, "Teacher already exists")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		log.Printf("password hash failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	subjects := make([]model.SubjectAssignment, 0, len(req.Subjects))
	for _, subject := range req.Subjects {
		if subject.SubjectCode == "" {
			respondError(w, http.StatusBadRequest, "All fields are required.")
			return
		}
		subjects = append(subjects, model.SubjectAssignment{
			SubjectCode: subject.SubjectCode,
			Subgroups:   subject.Subgroups,
		})
	}

	teacher := model.Teacher{
		ID:           req.TeacherID,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.store.CreateTeacher(r.Context(), teacher, subjects); err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusBadRequest, "Teacher already exists")
			return
		}
		log.Printf("teacher sign-up insert failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond(w, http.StatusOK, "Teacher created successfully", map[string]interface{}{
		"teacherId": teacher.ID,
		"name":      teacher.Name,
		"email":     teacher.Email,
		"subjects":  req.Subjects,
	})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleTeacherSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	teacher, err := s.store.GetTeacherByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusBadRequest, "Teacher not found")
			return
		}
		log.Printf("teacher sign-in lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := crypto.CheckPassword(teacher.PasswordHash, req.Password); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid password")
		return
	}

	token, err := s.issueToken(w, teacher.ID, auth.UserTypeTeacher)
	if err != nil {
		log.Printf("token issue failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond(w, http.StatusOK, "Login successful", map[string]interface{}{
		"id":    teacher.ID,
		"name":  teacher.Name,
		"email": teacher.Email,
		"type":  auth.UserTypeTeacher,
		"token": token,
	})
}

type subgroupView struct {
	SubgroupID string `json:"subgroupId"`
	BranchID   string `json:"branchId"`
	YearID     string `json:"yearId"`
}

type teacherSubjectView struct {
	SubjectCode string         `json:"subjectCode"`
	SubjectName string         `json:"subjectName"`
	Subgroups   []subgroupView `json:"subgroups"`
}

type teacherDetailsResponse struct {
	TeacherID   string               `json:"teacherId"`
	TeacherName string               `json:"teacherName"`
	Email       string               `json:"email"`
	Subjects    []teacherSubjectView `json:"subjects"`
}

func (s *Server) handleTeacherDetails(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "Access denied. No token provided.")
		return
	}

	teacher, err := s.store.GetTeacherByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Teacher not found")
			return
		}
		log.Printf("teacher details lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	rows, err := s.store.ListTeacherSubjects(r.Context(), teacher.ID)
	if err != nil {
		log.Printf("teacher subjects query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	details := teacherDetailsResponse{
		TeacherID:   teacher.ID,
		TeacherName: teacher.Name,
		Email:       teacher.Email,
		Subjects:    []teacherSubjectView{},
	}
	index := map[string]int{}
	for _, row := range rows {
		i, ok := index[row.SubjectCode]
		if !ok {
			details.Subjects = append(details.Subjects, teacherSubjectView{
				SubjectCode: row.SubjectCode,
				SubjectName: row.SubjectName,
				Subgroups:   []subgroupView{},
			})
			i = len(details.Subjects) - 1
			index[row.SubjectCode] = i
		}
		if row.Subgroup != nil {
			details.Subjects[i].Subgroups = append(details.Subjects[i].Subgroups, subgroupView{
				SubgroupID: row.Subgroup.ID,
				BranchID:   row.Subgroup.BranchID,
				YearID:     row.Subgroup.YearID,
			})
		}
	}

	respond(w, http.StatusOK, "Teacher details fetched successfully", details)
}

type updateSubgroupsRequest struct {
	Subgroups []string `json:"subgroups"`
}

func (s *Server) handleUpdateSubgroups(w http.ResponseWriter, r *http.Request) {
	teacherID := chi.URLParam(r, "teacherId")
	subjectCode := chi.URLParam(r, "subjectCode")

	var req updateSubgroupsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Subgroups == nil {
		respondError(w, http.StatusBadRequest, "Subgroups are required")
		return
	}

	if err := s.store.ReplaceTeacherSubgroups(r.Context(), teacherID, subjectCode, req.Subgroups); err != nil {
		log.Printf("update subgroups failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond(w, http.StatusOK, "Subgroups updated successfully", map[string]interface{}{
		"teacherId":   teacherID,
		"subjectCode": subjectCode,
		"subgroups":   req.Subgroups,
	})
}

type attendanceEntryRequest struct {
	StudentID string `json:"studentId"`
	Status    string `json:"status"`
}

type markAttendanceRequest struct {
	Attendance []attendanceEntryRequest `json:"attendance"`
	Date       string                   `json:"date"`
}

func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "Access denied. No token provided.")
		return
	}
	subjectCode := chi.URLParam(r, "subjectCode")
	subgroupID := chi.URLParam(r, "subgroupId")

	assigned, err := s.store.IsTeacherAssigned(r.Context(), claims.UserID, subjectCode, subgroupID)
	if err != nil {
		log.Printf("assignment check failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !assigned {
		respondError(w, http.StatusForbidden, "Teacher is not assigned to this subject and subgroup")
		return
	}

	var req markAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid or missing attendance data")
		return
	}
	if len(req.Attendance) == 0 {
		respondError(w, http.StatusBadRequest, "Invalid or missing attendance data")
		return
	}
	entries := make([]model.AttendanceEntry, 0, len(req.Attendance))
	for _, entry := range req.Attendance {
		status := model.AttendanceStatus(entry.Status)
		if entry.StudentID == "" || !status.Valid() {
			respondError(w, http.StatusBadRequest, "Invalid or missing attendance data")
			return
		}
		entries = append(entries, model.AttendanceEntry{StudentID: entry.StudentID, Status: status})
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		date, err = parseDate(req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid or missing attendance data")
			return
		}
	}

	if err := s.store.MarkAttendance(r.Context(), subjectCode, date, entries); err != nil {
		log.Printf("mark attendance failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond(w, http.StatusOK, fmt.Sprintf("Attendance marked successfully for %s", date.Format(dateLayout)), map[string]interface{}{
		"date":  date.Format(dateLayout),
		"count": len(entries),
	})
}

type attendanceRowView struct {
	Date         string `json:"date"`
	Status       string `json:"status"`
	StudentID    string `json:"studentId"`
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
}

func (s *Server) handleAttendanceDetails(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "Access denied. No token provided.")
		return
	}
	subjectCode := chi.URLParam(r, "subjectCode")
	subgroupID := chi.URLParam(r, "subgroupId")

	assigned, err := s.store.IsTeacherAssigned(r.Context(), claims.UserID, subjectCode, subgroupID)
	if err != nil {
		log.Printf("assignment check failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !assigned {
		respondError(w, http.StatusForbidden, "Teacher is not assigned to this subject and subgroup")
		return
	}

	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date")
		return
	}

	rows, err := s.store.ListAttendance(r.Context(), subjectCode, subgroupID, date)
	if err != nil {
		log.Printf("attendance query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	result := make([]attendanceRowView, 0, len(rows))
	for _, row := range rows {
		result = append(result, attendanceRowView{
			Date:         formatRecordDate(row.Date),
			Status:       string(row.Status),
			StudentID:    row.StudentID,
			StudentName:  row.StudentName,
			StudentEmail: row.StudentEmail,
		})
	}

	respond(w, http.StatusOK, "Attendance and student details fetched successfully", result)
}
