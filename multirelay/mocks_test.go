package multirelay_test

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/nostrsync/negsync/nip11"
)

// MockCapabilityChecker is a mock of CapabilityChecker interface.
type MockCapabilityChecker struct {
	ctrl     *gomock.Controller
	recorder *MockCapabilityCheckerMockRecorder
}

// MockCapabilityCheckerMockRecorder is the mock recorder for MockCapabilityChecker.
type MockCapabilityCheckerMockRecorder struct {
	mock *MockCapabilityChecker
}

// NewMockCapabilityChecker creates a new mock instance.
func NewMockCapabilityChecker(ctrl *gomock.Controller) *MockCapabilityChecker {
	mock := &MockCapabilityChecker{ctrl: ctrl}
	mock.recorder = &MockCapabilityCheckerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCapabilityChecker) EXPECT() *MockCapabilityCheckerMockRecorder {
	return m.recorder
}

// Check mocks base method.
func (m *MockCapabilityChecker) Check(arg0 context.Context, arg1 string) nip11.Capability {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Check", arg0, arg1)
	ret0, _ := ret[0].(nip11.Capability)
	return ret0
}

// Check indicates an expected call of Check.
func (mr *MockCapabilityCheckerMockRecorder) Check(arg0 any, arg1 any) *MockCapabilityCheckerCheckCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Check", reflect.TypeOf((*MockCapabilityChecker)(nil).Check), arg0, arg1)
	return &MockCapabilityCheckerCheckCall{Call: call}
}

// MockCapabilityCheckerCheckCall wrap *gomock.Call.
type MockCapabilityCheckerCheckCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockCapabilityCheckerCheckCall) Return(arg0 nip11.Capability) *MockCapabilityCheckerCheckCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockCapabilityCheckerCheckCall) Do(f func(context.Context, string) nip11.Capability) *MockCapabilityCheckerCheckCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockCapabilityCheckerCheckCall) DoAndReturn(f func(context.Context, string) nip11.Capability) *MockCapabilityCheckerCheckCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}
