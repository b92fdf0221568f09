package pst

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/index"
	"github.com/zhukovaskychina/xpst/pst/node"
	"github.com/zhukovaskychina/xpst/pst/props"
)

// Object is one descriptor with its property context. Properties and local
// descriptors are read on first use and kept; the memo is not locked, so an
// Object must not be shared before its first access completes.
type Object struct {
	store      *Store
	Descriptor index.DescriptorEntry

	props    props.PropertyMap
	locals   node.LocalDescriptorMap
	resolver *props.Resolver
}

// Object resolves id and returns an unloaded Object.
func (s *Store) Object(id uint64) (*Object, error) {
	d, err := s.ResolveDescriptor(id)
	if err != nil {
		return nil, err
	}
	return &Object{store: s, Descriptor: d}, nil
}

func (o *Object) ID() uint64 {
	return o.Descriptor.DescriptorID
}

func (o *Object) NodeType() uint8 {
	return o.Descriptor.NodeType()
}

// Properties parses the object's property context.
func (o *Object) Properties() (props.PropertyMap, error) {
	if o.props != nil {
		return o.props, nil
	}
	stream, err := o.store.OpenDescriptorStream(o.Descriptor)
	if err != nil {
		return nil, err
	}
	pm, err := o.store.ParsePropertyTable(stream)
	if err != nil {
		return nil, errors.WithMessagef(err, "object 0x%X", o.ID())
	}
	o.props = pm
	return pm, nil
}

func (o *Object) LocalDescriptors() (node.LocalDescriptorMap, error) {
	if o.locals != nil {
		return o.locals, nil
	}
	locals, err := o.store.LocalDescriptors(o.Descriptor)
	if err != nil {
		return nil, errors.WithMessagef(err, "object 0x%X", o.ID())
	}
	o.locals = locals
	return locals, nil
}

// Resolver loads both maps and binds them.
func (o *Object) Resolver() (*props.Resolver, error) {
	if o.resolver != nil {
		return o.resolver, nil
	}
	pm, err := o.Properties()
	if err != nil {
		return nil, err
	}
	locals, err := o.LocalDescriptors()
	if err != nil {
		return nil, err
	}
	o.resolver = o.store.PropertyResolver(pm, locals)
	return o.resolver, nil
}

func (o *Object) DisplayName() (string, error) {
	r, err := o.Resolver()
	if err != nil {
		return "", err
	}
	return r.GetStringOr(common.PR_DISPLAY_NAME, "")
}

// RTFBody decodes PR_RTF_COMPRESSED. An object without one yields "".
func (o *Object) RTFBody() (string, error) {
	r, err := o.Resolver()
	if err != nil {
		return "", err
	}
	raw, err := r.GetBinary(common.PR_RTF_COMPRESSED)
	if err != nil || raw == nil {
		return "", err
	}
	return o.store.DecodeCompressedRTF(raw)
}
