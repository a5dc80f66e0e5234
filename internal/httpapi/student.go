package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"classtrack/attendance/internal/auth"
	"classtrack/attendance/internal/crypto"
	"classtrack/attendance/internal/model"
)

type studentSignUpRequest struct {
	StudentID  string `json:"studentId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	SubgroupID string `json:"subgroupId"`
}

func (s *Server) handleStudentSignUp(w http.ResponseWriter, r *http.Request) {
	var req studentSignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.StudentID == "" || req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "All fields are required.")
		return
	}

	exists, err := s.store.StudentExists(r.Context(), req.StudentID)
	if err != nil {
		log.Printf("student sign-up lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if exists {
		respondError(w, http.StatusBadRequest, "Student already exists.")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		log.Printf("password hash failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	student := model.Student{
		ID:           req.StudentID,
		Name:         req.Name,
		RollNumber:   req.StudentID,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if req.SubgroupID != "" {
		student.SubgroupID = &req.SubgroupID
	}

	if err := s.store.CreateStudent(r.Context(), student); err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusBadRequest, "Student already exists.")
			return
		}
		log.Printf("student sign-up insert failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond(w, http.StatusCreated, "Student created successfully.", map[string]interface{}{
		"studentId": student.ID,
		"name":      student.Name,
		"email":     student.Email,
	})
}

type studentSignInRequest struct {
	RollNumber string `json:"roll_number"`
	Password   string `json:"password"`
}

func (s *Server) handleStudentSignIn(w http.ResponseWriter, r *http.Request) {
	var req studentSignInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RollNumber == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Roll number and password are required")
		return
	}

	student, err := s.store.GetStudentByRollNumber(r.Context(), req.RollNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Student not found")
			return
		}
		log.Printf("student sign-in lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := crypto.CheckPassword(student.PasswordHash, req.Password); err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	if _, err := s.issueToken(w, student.ID, auth.UserTypeStudent); err != nil {
		log.Printf("token issue failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond(w, http.StatusOK, "Login successful", map[string]interface{}{
		"id":         student.ID,
		"name":       student.Name,
		"rollNumber": student.RollNumber,
		"type":       auth.UserTypeStudent,
	})
}

type teacherRefView struct {
	TeacherID   string `json:"teacherId"`
	TeacherName string `json:"teacherName"`
}

type attendanceMarkView struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

type studentSubjectView struct {
	SubjectCode string               `json:"subjectCode"`
	SubjectName string               `json:"subjectName"`
	Teacher     teacherRefView       `json:"teacher"`
	Subgroups   []subgroupView       `json:"subgroups"`
	Attendance  []attendanceMarkView `json:"attendance"`
}

type studentDetailsResponse struct {
	StudentID string               `json:"studentId"`
	Name      string               `json:"name"`
	Email     string               `json:"email"`
	Subjects  []studentSubjectView `json:"subjects"`
}

func (s *Server) handleStudentDetails(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "Access denied. No token provided.")
		return
	}

	student, err := s.store.GetStudentByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "No data found for this student.")
			return
		}
		log.Printf("student details lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	rows, err := s.store.ListStudentSubjects(r.Context(), student.ID)
	if err != nil {
		log.Printf("student subjects query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	details := studentDetailsResponse{
		StudentID: student.ID,
		Name:      student.Name,
		Email:     student.Email,
		Subjects:  []studentSubjectView{},
	}
	index := map[string]int{}
	for _, row := range rows {
		i, ok := index[row.SubjectCode]
		if !ok {
			details.Subjects = append(details.Subjects, studentSubjectView{
				SubjectCode: row.SubjectCode,
				SubjectName: row.SubjectName,
				Teacher: teacherRefView{
					TeacherID:   row.TeacherID,
					TeacherName: row.TeacherName,
				},
				Subgroups: []subgroupView{{
					SubgroupID: row.Subgroup.ID,
					BranchID:   row.Subgroup.BranchID,
					YearID:     row.Subgroup.YearID,
				}},
				Attendance: []attendanceMarkView{},
			})
			i = len(details.Subjects) - 1
			index[row.SubjectCode] = i
		}
		if row.AttendanceDate != nil && row.AttendanceStatus != nil {
			details.Subjects[i].Attendance = append(details.Subjects[i].Attendance, attendanceMarkView{
				Date:   formatRecordDate(*row.AttendanceDate),
				Status: string(*row.AttendanceStatus),
			})
		}
	}

	respond(w, http.StatusOK, "Student details fetched successfully", details)
}

type selfReportRequest struct {
	StudentID   string `json:"studentId"`
	SubjectCode string `json:"subjectCode"`
	Date        string `json:"date"`
	Status      string `json:"status"`
}

// handleStudentMarkAttendance is the one-shot self-report: unlike the teacher
// batch, a duplicate mark for the same date is rejected outright and the first
// record stays untouched.
func (s *Server) handleStudentMarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req selfReportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "All fields (studentId, subjectCode, date, status) are required.")
		return
	}
	if req.StudentID == "" || req.SubjectCode == "" || req.Date == "" || req.Status == "" {
		respondError(w, http.StatusBadRequest, "All fields (studentId, subjectCode, date, status) are required.")
		return
	}
	status := model.AttendanceStatus(req.Status)
	if !status.Valid() {
		respondError(w, http.StatusBadRequest, "Invalid attendance status")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date")
		return
	}

	exists, err := s.store.AttendanceExists(r.Context(), req.StudentID, req.SubjectCode, date)
	if err != nil {
		log.Printf("attendance lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if exists {
		respondError(w, http.StatusBadRequest, "Attendance already marked for this date.")
		return
	}

	record := model.AttendanceRecord{
		ID:          uuid.NewString(),
		StudentID:   req.StudentID,
		SubjectCode: req.SubjectCode,
		Date:        date,
		Status:      status,
	}
	if err := s.store.CreateAttendanceRecord(r.Context(), record); err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusBadRequest, "Attendance already marked for this date.")
			return
		}
		log.Printf("attendance insert failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond(w, http.StatusOK, "Attendance marked successfully.", map[string]interface{}{
		"studentId":   req.StudentID,
		"subjectCode": req.SubjectCode,
		"date":        req.Date,
		"status":      req.Status,
	})
}
