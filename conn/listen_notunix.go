//go:build !unix

package conn

func (fns setFuncSlice) appendSetSendBufferSize(size int) setFuncSlice {
	return fns
}

func (fns setFuncSlice) appendSetRecvBufferSize(size int) setFuncSlice {
	return fns
}
