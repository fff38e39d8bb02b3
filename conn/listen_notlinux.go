//go:build !linux

package conn

func (fns setFuncSlice) appendSetFwmarkFunc(fwmark int) setFuncSlice {
	return fns
}
