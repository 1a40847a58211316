package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	// 带详情
	err = New(ErrDuplicateDraw, "号码: 17")
	suite.Equal(ErrDuplicateDraw, err.Code)
	suite.Equal("号码重复", err.Message)
	suite.Equal("号码: 17", err.Details)

	// 多个详情
	err = New(ErrSerialPortOpen, "打开失败", "端口: /dev/ttyUSB0", "波特率: 9600")
	suite.Equal("打开失败; 端口: /dev/ttyUSB0; 波特率: 9600", err.Details)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrEntropyStalled, "尝试 %d 次后仍无可用号码", 1024)
	suite.Equal(ErrEntropyStalled, err.Code)
	suite.Equal("尝试 1024 次后仍无可用号码", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("原始错误", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	suite.Nil(Wrap(nil, ErrUnknown))

	// 包装已有的AppError时保留原始错误码
	appErr := New(ErrNotFound, "轮次不存在")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "额外信息")
	suite.Equal(ErrNotFound, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "额外信息")
}

// 测试格式化错误包装
func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("no such file or directory")
	wrappedErr := Wrapf(originalErr, ErrSerialPortOpen, "串口 %s 打开失败", "/dev/ttyACM0")
	suite.Equal(ErrSerialPortOpen, wrappedErr.Code)
	suite.Equal("串口 /dev/ttyACM0 打开失败", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
	suite.ErrorIs(wrappedErr, originalErr)
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrDrawSpaceExhausted)
	suite.True(Is(err, ErrDrawSpaceExhausted))
	suite.False(Is(err, ErrEntropyStalled))
	suite.False(Is(nil, ErrDrawSpaceExhausted))
	suite.False(Is(errors.New("标准错误"), ErrUnknown))
}

// 测试获取错误码
func (suite *ErrorsTestSuite) TestGetCode() {
	suite.Equal(ErrSerialOverrun, GetCode(New(ErrSerialOverrun)))
	suite.Equal(ErrUnknown, GetCode(errors.New("标准错误")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

// 测试错误消息
func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{
		Code:    ErrNotFound,
		Message: "资源未找到",
	}
	suite.Equal("[1002] 资源未找到", err.Error())

	err.Details = "轮次: abc"
	suite.Equal("[1002] 资源未找到: 轮次: abc", err.Error())
}

// 测试WithCause
func (suite *ErrorsTestSuite) TestWithCause() {
	cause := errors.New("database is locked")
	err := New(ErrDatabaseInsert).WithCause(cause)
	suite.Equal(cause, err.Cause)
	suite.Equal("database is locked", err.Details)

	// 已有Details时保留
	err2 := New(ErrDatabaseInsert, "写入抽号记录失败").WithCause(cause)
	suite.Equal("写入抽号记录失败", err2.Details)
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrUnknownButton, 400},
		{ErrNotFound, 404},
		{ErrPortNotVirtual, 409},
		{ErrTimeout, 408},
		{ErrDatabaseQuery, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

// 测试可重试判断
func (suite *ErrorsTestSuite) TestIsRetryable() {
	for _, code := range []ErrorCode{ErrTimeout, ErrSerialPortOpen, ErrSerialPortWrite, ErrDatabaseConnect} {
		suite.True(IsRetryable(New(code)), "错误码 %d 应该是可重试的", code)
	}
	for _, code := range []ErrorCode{ErrInvalidParam, ErrDuplicateDraw, ErrSerialOverrun} {
		suite.False(IsRetryable(New(code)), "错误码 %d 不应该是可重试的", code)
	}
	suite.False(IsRetryable(nil))
}

// 测试严重错误判断
func (suite *ErrorsTestSuite) TestIsCritical() {
	for _, code := range []ErrorCode{ErrDrawSpaceExhausted, ErrEntropyStalled, ErrInvalidBinding, ErrConfigLoad} {
		suite.True(IsCritical(New(code)), "错误码 %d 应该是严重错误", code)
	}
	for _, code := range []ErrorCode{ErrInvalidParam, ErrSerialOverrun, ErrTimeout} {
		suite.False(IsCritical(New(code)), "错误码 %d 不应该是严重错误", code)
	}
	suite.False(IsCritical(nil))
}

// 测试调用栈捕获
func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
}

// 测试错误响应
func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrNotFound, "轮次不存在")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

// 测试未知错误码
func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

// 测试抽号相关错误
func (suite *ErrorsTestSuite) TestDrawErrors() {
	drawErrors := map[ErrorCode]string{
		ErrDrawSpaceExhausted: "可抽号码已耗尽",
		ErrEntropyStalled:     "随机源无法产生可用号码",
		ErrInvalidBinding:     "按键映射无效",
		ErrDuplicateDraw:      "号码重复",
		ErrDrawSetFull:        "已抽号码表已满",
		ErrDrawValueRange:     "号码超出范围",
	}

	for code, expectedMsg := range drawErrors {
		suite.Equal(expectedMsg, New(code).Message)
	}
}

// 测试硬件相关错误
func (suite *ErrorsTestSuite) TestHardwareErrors() {
	hardwareErrors := map[ErrorCode]string{
		ErrSerialPortOpen:  "串口打开失败",
		ErrSerialPortWrite: "串口写入失败",
		ErrSerialOverrun:   "串口发送缓冲溢出",
		ErrSerialClosed:    "串口已关闭",
		ErrUnknownButton:   "未知按键",
	}

	for code, expectedMsg := range hardwareErrors {
		suite.Equal(expectedMsg, New(code).Message)
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
