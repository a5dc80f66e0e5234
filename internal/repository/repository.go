package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"classtrack/attendance/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx runs fn inside a transaction and rolls back on any error, so a
// multi-statement write is all-or-nothing.
func (s *Store) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Teachers

func (s *Store) TeacherExists(ctx context.Context, teacherID, email string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM teachers WHERE teacher_id = $1 OR email = $2`, teacherID, email)
}

func (s *Store) CreateTeacher(ctx context.Context, teacher model.Teacher, subjects []model.SubjectAssignment) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO teachers (teacher_id, teacher_name, email, password_hash)
			VALUES ($1, $2, $3, $4)
		`, teacher.ID, teacher.Name, teacher.Email, teacher.PasswordHash)
		if err != nil {
			return err
		}
		for _, subject := range subjects {
			_, err := tx.Exec(ctx, `
				INSERT INTO teacher_subjects (teacher_id, subject_code)
				VALUES ($1, $2)
			`, teacher.ID, subject.SubjectCode)
			if err != nil {
				return err
			}
			for _, subgroupID := range subject.Subgroups {
				_, err := tx.Exec(ctx, `
					INSERT INTO teacher_subgroups (teacher_id, subject_code, subgroup_id)
					VALUES ($1, $2, $3)
				`, teacher.ID, subject.SubjectCode, subgroupID)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Store) GetTeacherByEmail(ctx context.Context, email string) (model.Teacher, error) {
	var teacher model.Teacher
	row := s.pool.QueryRow(ctx, `
		SELECT teacher_id, teacher_name, email, password_hash
		FROM teachers
		WHERE email = $1
	`, email)
	err := row.Scan(&teacher.ID, &teacher.Name, &teacher.Email, &teacher.PasswordHash)
	return teacher, err
}

func (s *Store) GetTeacherByID(ctx context.Context, teacherID string) (model.Teacher, error) {
	var teacher model.Teacher
	row := s.pool.QueryRow(ctx, `
		SELECT teacher_id, teacher_name, email, password_hash
		FROM teachers
		WHERE teacher_id = $1
	`, teacherID)
	err := row.Scan(&teacher.ID, &teacher.Name, &teacher.Email, &teacher.PasswordHash)
	return teacher, err
}

// ListTeacherSubjects returns every subject the teacher is assigned, one row
// per (subject, subgroup) pair, subgroup columns null when none is assigned.
func (s *Store) ListTeacherSubjects(ctx context.Context, teacherID string) ([]model.TeacherSubjectRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.subject_code, s.subject_name, sg.subgroup_id, sg.branch_id, sg.year_id
		FROM teacher_subjects ts
		JOIN subjects s ON ts.subject_code = s.subject_code
		LEFT JOIN teacher_subgroups tsg ON ts.teacher_id = tsg.teacher_id AND ts.subject_code = tsg.subject_code
		LEFT JOIN subgroups sg ON tsg.subgroup_id = sg.subgroup_id
		WHERE ts.teacher_id = $1
		ORDER BY s.subject_code
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.TeacherSubjectRow
	for rows.Next() {
		var r model.TeacherSubjectRow
		var subgroupID, branchID, yearID *string
		if err := rows.Scan(&r.SubjectCode, &r.SubjectName, &subgroupID, &branchID, &yearID); err != nil {
			return nil, err
		}
		if subgroupID != nil {
			r.Subgroup = &model.Subgroup{ID: *subgroupID}
			if branchID != nil {
				r.Subgroup.BranchID = *branchID
			}
			if yearID != nil {
				r.Subgroup.YearID = *yearID
			}
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ReplaceTeacherSubgroups swaps out the full subgroup set for one subject.
// Delete-then-reinsert inside a transaction, so a failed insert leaves the old
// assignments in place.
func (s *Store) ReplaceTeacherSubgroups(ctx context.Context, teacherID, subjectCode string, subgroupIDs []string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM teacher_subgroups
			WHERE teacher_id = $1 AND subject_code = $2
		`, teacherID, subjectCode)
		if err != nil {
			return err
		}
		for _, subgroupID := range subgroupIDs {
			_, err := tx.Exec(ctx, `
				INSERT INTO teacher_subgroups (teacher_id, subject_code, subgroup_id)
				VALUES ($1, $2, $3)
			`, teacherID, subjectCode, subgroupID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// IsTeacherAssigned is the authorization check for marking and reading
// attendance: the (teacher, subject, subgroup) triple must exist.
func (s *Store) IsTeacherAssigned(ctx context.Context, teacherID, subjectCode, subgroupID string) (bool, error) {
	return s.exists(ctx, `
		SELECT 1 FROM teacher_subgroups
		WHERE teacher_id = $1 AND subject_code = $2 AND subgroup_id = $3
	`, teacherID, subjectCode, subgroupID)
}

// Students

func (s *Store) StudentExists(ctx context.Context, studentID string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM students WHERE student_id = $1`, studentID)
}

func (s *Store) CreateStudent(ctx context.Context, student model.Student) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (student_id, student_name, roll_number, email, password_hash, subgroup_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, student.ID, student.Name, student.RollNumber, student.Email, student.PasswordHash, student.SubgroupID)
	return err
}

func (s *Store) GetStudentByRollNumber(ctx context.Context, rollNumber string) (model.Student, error) {
	var student model.Student
	row := s.pool.QueryRow(ctx, `
		SELECT student_id, student_name, roll_number, email, password_hash, subgroup_id
		FROM students
		WHERE roll_number = $1
	`, rollNumber)
	err := row.Scan(&student.ID, &student.Name, &student.RollNumber, &student.Email, &student.PasswordHash, &student.SubgroupID)
	return student, err
}

func (s *Store) GetStudentByID(ctx context.Context, studentID string) (model.Student, error) {
	var student model.Student
	row := s.pool.QueryRow(ctx, `
		SELECT student_id, student_name, roll_number, email, password_hash, subgroup_id
		FROM students
		WHERE student_id = $1
	`, studentID)
	err := row.Scan(&student.ID, &student.Name, &student.RollNumber, &student.Email, &student.PasswordHash, &student.SubgroupID)
	return student, err
}

// ListStudentSubjects resolves the subjects taught to the student's subgroup,
// one row per (subject, attendance record); attendance columns null when the
// student has no record for that subject.
func (s *Store) ListStudentSubjects(ctx context.Context, studentID string) ([]model.StudentSubjectRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.subject_code, s.subject_name, t.teacher_id, t.teacher_name,
		       sg.subgroup_id, sg.branch_id, sg.year_id,
		       a.date, a.status
		FROM students st
		JOIN subgroups sg ON st.subgroup_id = sg.subgroup_id
		JOIN teacher_subgroups tsg ON sg.subgroup_id = tsg.subgroup_id
		JOIN teacher_subjects ts ON tsg.teacher_id = ts.teacher_id AND tsg.subject_code = ts.subject_code
		JOIN subjects s ON ts.subject_code = s.subject_code
		JOIN teachers t ON ts.teacher_id = t.teacher_id
		LEFT JOIN attendance a ON st.student_id = a.student_id AND s.subject_code = a.subject_code
		WHERE st.student_id = $1
		ORDER BY s.subject_code, a.date
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.StudentSubjectRow
	for rows.Next() {
		var r model.StudentSubjectRow
		if err := rows.Scan(
			&r.SubjectCode,
			&r.SubjectName,
			&r.TeacherID,
			&r.TeacherName,
			&r.Subgroup.ID,
			&r.Subgroup.BranchID,
			&r.Subgroup.YearID,
			&r.AttendanceDate,
			&r.AttendanceStatus,
		); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Attendance

// MarkAttendance upserts the batch for one subject and date: an existing
// (student, subject, date) record gets its status replaced, otherwise a new
// row is inserted. Runs in a single transaction so a failing entry discards
// the whole batch.
func (s *Store) MarkAttendance(ctx context.Context, subjectCode string, date time.Time, entries []model.AttendanceEntry) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, entry := range entries {
			var existingID string
			err := tx.QueryRow(ctx, `
				SELECT id FROM attendance
				WHERE student_id = $1 AND subject_code = $2 AND date = $3
			`, entry.StudentID, subjectCode, date).Scan(&existingID)
			switch {
			case err == nil:
				_, err = tx.Exec(ctx, `
					UPDATE attendance SET status = $1 WHERE id = $2
				`, entry.Status, existingID)
				if err != nil {
					return err
				}
			case errors.Is(err, pgx.ErrNoRows):
				_, err = tx.Exec(ctx, `
					INSERT INTO attendance (id, student_id, subject_code, date, status)
					VALUES ($1, $2, $3, $4, $5)
				`, uuid.NewString(), entry.StudentID, subjectCode, date, entry.Status)
				if err != nil {
					return err
				}
			default:
				return err
			}
		}
		return nil
	})
}

func (s *Store) AttendanceExists(ctx context.Context, studentID, subjectCode string, date time.Time) (bool, error) {
	return s.exists(ctx, `
		SELECT 1 FROM attendance
		WHERE student_id = $1 AND subject_code = $2 AND date = $3
	`, studentID, subjectCode, date)
}

func (s *Store) CreateAttendanceRecord(ctx context.Context, record model.AttendanceRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attendance (id, student_id, subject_code, date, status)
		VALUES ($1, $2, $3, $4, $5)
	`, record.ID, record.StudentID, record.SubjectCode, record.Date, record.Status)
	return err
}

// ListAttendance returns the attendance rows for one subject, subgroup and
// date, joined with student identity. An empty day yields an empty slice.
func (s *Store) ListAttendance(ctx context.Context, subjectCode, subgroupID string, date time.Time) ([]model.AttendanceRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.date, a.status, st.student_id, st.student_name, st.email
		FROM attendance a
		JOIN students st ON a.student_id = st.student_id
		WHERE a.subject_code = $1 AND a.date = $2 AND st.subgroup_id = $3
		ORDER BY st.student_id
	`, subjectCode, date, subgroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.AttendanceRow, 0)
	for rows.Next() {
		var r model.AttendanceRow
		if err := rows.Scan(&r.Date, &r.Status, &r.StudentID, &r.StudentName, &r.StudentEmail); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (`+query+`)`, args...).Scan(&exists)
	return exists, err
}
