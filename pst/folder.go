package pst

import (
	stderrors "errors"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/logger"
	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/index"
)

var ErrNotFolder = stderrors.New("pst: descriptor is not a folder")

// MessageStore returns the store object, holding the store's display name
// and the entry id of the IPM subtree.
func (s *Store) MessageStore() (*Object, error) {
	return s.Object(common.NID_MESSAGE_STORE)
}

// RootFolder returns the top of the folder hierarchy.
func (s *Store) RootFolder() (*Object, error) {
	return s.Folder(common.NID_ROOT_FOLDER)
}

// Folder is Object restricted to folder descriptors.
func (s *Store) Folder(id uint64) (*Object, error) {
	if !common.IsFolderType(common.NodeType(id)) {
		return nil, errors.Wrapf(ErrNotFolder, "0x%X", id)
	}
	return s.Object(id)
}

// ChildFolders lists the subfolders of folderID. The folder's hierarchy
// table is read first; only when that table fails to parse is the descriptor
// index scanned instead. Any other failure is returned.
func (s *Store) ChildFolders(folderID uint64) ([]index.DescriptorEntry, error) {
	children, err := s.childFoldersFromTable(folderID)
	if err == nil {
		return children, nil
	}
	if !common.IsParseError(err) {
		return nil, err
	}
	logger.Warnf("hierarchy table of folder 0x%X unreadable, scanning descriptor index: %v", folderID, err)
	return s.childFoldersFromIndex(folderID)
}

func (s *Store) childFoldersFromTable(folderID uint64) ([]index.DescriptorEntry, error) {
	hierarchy := common.MakeNID(folderID, common.NID_TYPE_HIERARCHY_TABLE)
	t, err := s.tableForDescriptor(hierarchy, common.PR_LTP_ROW_ID)
	if err != nil {
		return nil, err
	}
	values, err := t.GetColumnValues(common.PR_LTP_ROW_ID, 0, int(t.RowCount()))
	if err != nil {
		return nil, err
	}
	out := make([]index.DescriptorEntry, 0, len(values))
	for _, v := range values {
		d, err := s.ResolveDescriptor(uint64(v.Item.Value.Inline))
		if err != nil {
			return nil, errors.WithMessagef(err, "row %d of hierarchy table 0x%X", v.Row, hierarchy)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) childFoldersFromIndex(folderID uint64) ([]index.DescriptorEntry, error) {
	children, err := s.GetChildDescriptors(folderID)
	if err != nil {
		return nil, err
	}
	out := make([]index.DescriptorEntry, 0, len(children))
	for _, d := range children {
		if common.IsFolderType(d.NodeType()) {
			out = append(out, d)
		}
	}
	return out, nil
}

// ContentsCount is the number of rows in the folder's contents table.
func (s *Store) ContentsCount(folderID uint64) (int, error) {
	contents := common.MakeNID(folderID, common.NID_TYPE_CONTENTS_TABLE)
	t, err := s.tableForDescriptor(contents, common.PR_LTP_ROW_ID)
	if err != nil {
		return 0, err
	}
	return int(t.RowCount()), nil
}

// MessageIDs lists the message descriptor ids of the folder's contents
// table, count rows from start.
func (s *Store) MessageIDs(folderID uint64, start, count int) ([]uint64, error) {
	contents := common.MakeNID(folderID, common.NID_TYPE_CONTENTS_TABLE)
	t, err := s.tableForDescriptor(contents, common.PR_LTP_ROW_ID)
	if err != nil {
		return nil, err
	}
	values, err := t.GetColumnValues(common.PR_LTP_ROW_ID, start, count)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(values))
	for _, v := range values {
		ids = append(ids, uint64(v.Item.Value.Inline))
	}
	return ids, nil
}
