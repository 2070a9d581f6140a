package concurrency

import (
	"reflect"

	"go.uber.org/mock/gomock"
)

// MockLockHook is a gomock-style test double for LockHook[int], written
// by hand in the shape `mockgen` would generate rather than run through
// the generator itself.
type MockLockHook struct {
	ctrl     *gomock.Controller
	recorder *MockLockHookRecorder
}

// MockLockHookRecorder exposes EXPECT-style call expectations.
type MockLockHookRecorder struct {
	mock *MockLockHook
}

// NewMockLockHook constructs a MockLockHook bound to ctrl.
func NewMockLockHook(ctrl *gomock.Controller) *MockLockHook {
	m := &MockLockHook{ctrl: ctrl}
	m.recorder = &MockLockHookRecorder{mock: m}
	return m
}

// EXPECT returns the recorder used to set up call expectations.
func (m *MockLockHook) EXPECT() *MockLockHookRecorder {
	return m.recorder
}

// AboutToWait implements LockHook[int].
func (m *MockLockHook) AboutToWait(owner int) bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AboutToWait", owner)
	granted, _ := ret[0].(bool)
	return granted
}

// EXPECT helper for AboutToWait.
func (mr *MockLockHookRecorder) AboutToWait(owner interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AboutToWait",
		reflect.TypeOf((*MockLockHook)(nil).AboutToWait), owner)
}

// AboutToRelease implements LockHook[int].
func (m *MockLockHook) AboutToRelease() {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "AboutToRelease")
}

// EXPECT helper for AboutToRelease.
func (mr *MockLockHookRecorder) AboutToRelease() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AboutToRelease",
		reflect.TypeOf((*MockLockHook)(nil).AboutToRelease))
}
