package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:student:%d", studentID)
}

// TeacherSessionKey returns the cache key for a teacher's login session
func (r *CacheKeyStruct) TeacherSessionKey(teacherID int, jti string) string {
	return fmt.Sprintf("login:teacher:%d:%s", teacherID, jti)
}

// StudentExamSessionStartKey returns the cache key for a student's exam session start
func (r *CacheKeyStruct) StudentExamSessionStartKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:session_start", studentID, examID)
}

// StudentAnswersKey returns the cache key for a student's answers
func (r *CacheKeyStruct) StudentAnswersKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:answers", studentID, examID)
}

// StudentCurrentIndexKey returns the cache key for the question a student has on screen
func (r *CacheKeyStruct) StudentCurrentIndexKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:current_index", studentID, examID)
}

// StudentSubmittedKey marks an attempt as submitted before the worker persists it
func (r *CacheKeyStruct) StudentSubmittedKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:submitted", studentID, examID)
}

// StudentCameraLeaseKey returns the lease key guarding a student's proctoring camera
func (r *CacheKeyStruct) StudentCameraLeaseKey(examID string, studentID int) string {
	return fmt.Sprintf("proctor:student:%d:exam:%s:camera", studentID, examID)
}

// ExamPaperKey returns the cache key for an exam's student-facing paper
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
