// Package response wraps every non-streaming API reply (generated
// itineraries, ingest results, knowledge listings) in the shared
// code/message/data envelope. Streaming endpoints bypass it and emit SSE
// frames directly.
package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error reports failures with HTTP 200 and the code inside the envelope,
// leaving non-200 statuses to infrastructure. Codes live in pkg/errcode.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}
