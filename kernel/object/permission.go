package object

import (
	"norostb/kernel/kerr"
	"norostb/kernel/vmm"
)

// PermissionMask wraps another object, restricting it to a subset of RWX
// rights. Escalating rights beyond the wrapped object's own maximum is
// impossible: NewPermissionMask clamps to the parent's rights if the
// parent itself exposes a Restrict-style relationship (mirrored in
// vmm.RWX.Subset, enforced by the vmm layer when the mask backs a mapping).
type PermissionMask struct {
	Base
	parent Object
	rwx vmm.RWX
}

// NewPermissionMask restricts parent to rwx.
func NewPermissionMask(parent Object, rwx vmm.RWX) *PermissionMask {
	return &PermissionMask{parent: parent, rwx: rwx}
}

// RWX returns the mask's rights, consulted by the vmm layer when mapping
// an object through a PermissionMask.
func (p *PermissionMask) RWX() vmm.RWX { return p.rwx }

func (p *PermissionMask) Read(off uint64, length uint32) ([]byte, kerr.Code) {
	if p.rwx&vmm.R == 0 {
		return nil, kerr.PermissionDenied
	}
	return p.parent.Read(off, length)
}

func (p *PermissionMask) Peek(off uint64, length uint32) ([]byte, kerr.Code) {
	if p.rwx&vmm.R == 0 {
		return nil, kerr.PermissionDenied
	}
	return p.parent.Peek(off, length)
}

func (p *PermissionMask) Write(data []byte) (uint32, kerr.Code) {
	if p.rwx&vmm.W == 0 {
		return 0, kerr.PermissionDenied
	}
	return p.parent.Write(data)
}

func (p *PermissionMask) GetMeta(key string) ([]byte, kerr.Code) { return p.parent.GetMeta(key) }
func (p *PermissionMask) Seek(w Whence, off int64) (uint64, kerr.Code) {
	return p.parent.Seek(w, off)
}
