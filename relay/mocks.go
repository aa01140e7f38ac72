package relay

import (
	"context"
	"encoding/json"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/nostrsync/negsync/negentropy"
)

// MockConn is a mock of Conn interface.
type MockConn struct {
	ctrl     *gomock.Controller
	recorder *MockConnMockRecorder
}

// MockConnMockRecorder is the mock recorder for MockConn.
type MockConnMockRecorder struct {
	mock *MockConn
}

// NewMockConn creates a new mock instance.
func NewMockConn(ctrl *gomock.Controller) *MockConn {
	mock := &MockConn{ctrl: ctrl}
	mock.recorder = &MockConnMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockConn) EXPECT() *MockConnMockRecorder {
	return m.recorder
}

// Connected mocks base method.
func (m *MockConn) Connected() bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Connected")
	ret0, _ := ret[0].(bool)
	return ret0
}

// Connected indicates an expected call of Connected.
func (mr *MockConnMockRecorder) Connected() *MockConnConnectedCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Connected", reflect.TypeOf((*MockConn)(nil).Connected))
	return &MockConnConnectedCall{Call: call}
}

// MockConnConnectedCall wrap *gomock.Call.
type MockConnConnectedCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockConnConnectedCall) Return(arg0 bool) *MockConnConnectedCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockConnConnectedCall) Do(f func() bool) *MockConnConnectedCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockConnConnectedCall) DoAndReturn(f func() bool) *MockConnConnectedCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Handle mocks base method.
func (m *MockConn) Handle(arg0 string, arg1 MessageHandler) func() {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Handle", arg0, arg1)
	ret0, _ := ret[0].(func())
	return ret0
}

// Handle indicates an expected call of Handle.
func (mr *MockConnMockRecorder) Handle(arg0 any, arg1 any) *MockConnHandleCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Handle", reflect.TypeOf((*MockConn)(nil).Handle), arg0, arg1)
	return &MockConnHandleCall{Call: call}
}

// MockConnHandleCall wrap *gomock.Call.
type MockConnHandleCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockConnHandleCall) Return(arg0 func()) *MockConnHandleCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockConnHandleCall) Do(f func(string, MessageHandler) func()) *MockConnHandleCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockConnHandleCall) DoAndReturn(f func(string, MessageHandler) func()) *MockConnHandleCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// OnDisconnect mocks base method.
func (m *MockConn) OnDisconnect(arg0 func()) func() {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "OnDisconnect", arg0)
	ret0, _ := ret[0].(func())
	return ret0
}

// OnDisconnect indicates an expected call of OnDisconnect.
func (mr *MockConnMockRecorder) OnDisconnect(arg0 any) *MockConnOnDisconnectCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "OnDisconnect", reflect.TypeOf((*MockConn)(nil).OnDisconnect), arg0)
	return &MockConnOnDisconnectCall{Call: call}
}

// MockConnOnDisconnectCall wrap *gomock.Call.
type MockConnOnDisconnectCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockConnOnDisconnectCall) Return(arg0 func()) *MockConnOnDisconnectCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockConnOnDisconnectCall) Do(f func(func()) func()) *MockConnOnDisconnectCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockConnOnDisconnectCall) DoAndReturn(f func(func()) func()) *MockConnOnDisconnectCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// OnNotice mocks base method.
func (m *MockConn) OnNotice(arg0 func(string)) func() {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "OnNotice", arg0)
	ret0, _ := ret[0].(func())
	return ret0
}

// OnNotice indicates an expected call of OnNotice.
func (mr *MockConnMockRecorder) OnNotice(arg0 any) *MockConnOnNoticeCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "OnNotice", reflect.TypeOf((*MockConn)(nil).OnNotice), arg0)
	return &MockConnOnNoticeCall{Call: call}
}

// MockConnOnNoticeCall wrap *gomock.Call.
type MockConnOnNoticeCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockConnOnNoticeCall) Return(arg0 func()) *MockConnOnNoticeCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockConnOnNoticeCall) Do(f func(func(string)) func()) *MockConnOnNoticeCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockConnOnNoticeCall) DoAndReturn(f func(func(string)) func()) *MockConnOnNoticeCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Send mocks base method.
func (m *MockConn) Send(arg0 context.Context, arg1 []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Send", arg0, arg1)
	ret0, _ := ret[0].(error)
	return ret0
}

// Send indicates an expected call of Send.
func (mr *MockConnMockRecorder) Send(arg0 any, arg1 any) *MockConnSendCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*MockConn)(nil).Send), arg0, arg1)
	return &MockConnSendCall{Call: call}
}

// MockConnSendCall wrap *gomock.Call.
type MockConnSendCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockConnSendCall) Return(arg0 error) *MockConnSendCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockConnSendCall) Do(f func(context.Context, []byte) error) *MockConnSendCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockConnSendCall) DoAndReturn(f func(context.Context, []byte) error) *MockConnSendCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// URL mocks base method.
func (m *MockConn) URL() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "URL")
	ret0, _ := ret[0].(string)
	return ret0
}

// URL indicates an expected call of URL.
func (mr *MockConnMockRecorder) URL() *MockConnURLCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "URL", reflect.TypeOf((*MockConn)(nil).URL))
	return &MockConnURLCall{Call: call}
}

// MockConnURLCall wrap *gomock.Call.
type MockConnURLCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockConnURLCall) Return(arg0 string) *MockConnURLCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockConnURLCall) Do(f func() string) *MockConnURLCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockConnURLCall) DoAndReturn(f func() string) *MockConnURLCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// MockReconciler is a mock of Reconciler interface.
type MockReconciler struct {
	ctrl     *gomock.Controller
	recorder *MockReconcilerMockRecorder
}

// MockReconcilerMockRecorder is the mock recorder for MockReconciler.
type MockReconcilerMockRecorder struct {
	mock *MockReconciler
}

// NewMockReconciler creates a new mock instance.
func NewMockReconciler(ctrl *gomock.Controller) *MockReconciler {
	mock := &MockReconciler{ctrl: ctrl}
	mock.recorder = &MockReconcilerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockReconciler) EXPECT() *MockReconcilerMockRecorder {
	return m.recorder
}

// Initiate mocks base method.
func (m *MockReconciler) Initiate() ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Initiate")
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Initiate indicates an expected call of Initiate.
func (mr *MockReconcilerMockRecorder) Initiate() *MockReconcilerInitiateCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Initiate", reflect.TypeOf((*MockReconciler)(nil).Initiate))
	return &MockReconcilerInitiateCall{Call: call}
}

// MockReconcilerInitiateCall wrap *gomock.Call.
type MockReconcilerInitiateCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockReconcilerInitiateCall) Return(arg0 []byte, arg1 error) *MockReconcilerInitiateCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockReconcilerInitiateCall) Do(f func() ([]byte, error)) *MockReconcilerInitiateCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockReconcilerInitiateCall) DoAndReturn(f func() ([]byte, error)) *MockReconcilerInitiateCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Reconcile mocks base method.
func (m *MockReconciler) Reconcile(arg0 []byte) (negentropy.ReconcileResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Reconcile", arg0)
	ret0, _ := ret[0].(negentropy.ReconcileResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Reconcile indicates an expected call of Reconcile.
func (mr *MockReconcilerMockRecorder) Reconcile(arg0 any) *MockReconcilerReconcileCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Reconcile", reflect.TypeOf((*MockReconciler)(nil).Reconcile), arg0)
	return &MockReconcilerReconcileCall{Call: call}
}

// MockReconcilerReconcileCall wrap *gomock.Call.
type MockReconcilerReconcileCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockReconcilerReconcileCall) Return(arg0 negentropy.ReconcileResult, arg1 error) *MockReconcilerReconcileCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockReconcilerReconcileCall) Do(f func([]byte) (negentropy.ReconcileResult, error)) *MockReconcilerReconcileCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockReconcilerReconcileCall) DoAndReturn(f func([]byte) (negentropy.ReconcileResult, error)) *MockReconcilerReconcileCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// MockStorageProvider is a mock of StorageProvider interface.
type MockStorageProvider struct {
	ctrl     *gomock.Controller
	recorder *MockStorageProviderMockRecorder
}

// MockStorageProviderMockRecorder is the mock recorder for MockStorageProvider.
type MockStorageProviderMockRecorder struct {
	mock *MockStorageProvider
}

// NewMockStorageProvider creates a new mock instance.
func NewMockStorageProvider(ctrl *gomock.Controller) *MockStorageProvider {
	mock := &MockStorageProvider{ctrl: ctrl}
	mock.recorder = &MockStorageProviderMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockStorageProvider) EXPECT() *MockStorageProviderMockRecorder {
	return m.recorder
}

// OpenStorage mocks base method.
func (m *MockStorageProvider) OpenStorage(arg0 context.Context, arg1 json.RawMessage) (negentropy.Storage, func(), error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "OpenStorage", arg0, arg1)
	ret0, _ := ret[0].(negentropy.Storage)
	ret1, _ := ret[1].(func())
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// OpenStorage indicates an expected call of OpenStorage.
func (mr *MockStorageProviderMockRecorder) OpenStorage(arg0 any, arg1 any) *MockStorageProviderOpenStorageCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "OpenStorage", reflect.TypeOf((*MockStorageProvider)(nil).OpenStorage), arg0, arg1)
	return &MockStorageProviderOpenStorageCall{Call: call}
}

// MockStorageProviderOpenStorageCall wrap *gomock.Call.
type MockStorageProviderOpenStorageCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockStorageProviderOpenStorageCall) Return(arg0 negentropy.Storage, arg1 func(), arg2 error) *MockStorageProviderOpenStorageCall {
	c.Call = c.Call.Return(arg0, arg1, arg2)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockStorageProviderOpenStorageCall) Do(f func(context.Context, json.RawMessage) (negentropy.Storage, func(), error)) *MockStorageProviderOpenStorageCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockStorageProviderOpenStorageCall) DoAndReturn(f func(context.Context, json.RawMessage) (negentropy.Storage, func(), error)) *MockStorageProviderOpenStorageCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}
