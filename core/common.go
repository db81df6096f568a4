package core

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Operation represents a backend storage operation as recorded in the
// activity log, one of Create, Read, Update, Delete, List, Upload, Download
type Operation string

// all supported operations
const (
	OperationCreate   Operation = "create"
	OperationRead     Operation = "read"
	OperationUpdate   Operation = "update"
	OperationDelete   Operation = "delete"
	OperationList     Operation = "list"
	OperationUpload   Operation = "upload"
	OperationDownload Operation = "download"
	OperationLogin    Operation = "login"
	OperationRegister Operation = "register"
)

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	switch *o {
	case OperationCreate, OperationRead, OperationUpdate, OperationDelete,
		OperationList, OperationUpload, OperationDownload, OperationLogin, OperationRegister:
		return nil
	default:
		return fmt.Errorf("%s is not valid Operation", s)
	}
}
