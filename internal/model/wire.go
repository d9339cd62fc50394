// ABOUTME: JSON request and response bodies of the backend REST surface
// ABOUTME: Shared by the remote client and the reference server so both agree on the shapes

package model

// ThreadsResponse is returned by GET /api/chats/{device}.
type ThreadsResponse struct {
	Threads *[]Thread `json:"threads"`
}

// SendRequest is the body of POST /api/chats/send.
// MessageID lets the server drop a retried send it already applied.
type SendRequest struct {
	Device    string `json:"device" validate:"required,max=128"`
	ThreadID  string `json:"thread_id,omitempty" validate:"omitempty,max=128"`
	Message   string `json:"message" validate:"required,max=32768"`
	MessageID string `json:"message_id,omitempty" validate:"omitempty,max=128"`
}

// ThreadResponse is returned by POST /api/chats/send.
type ThreadResponse struct {
	Thread *Thread `json:"thread"`
}

// MemoryResponse is returned by GET /api/memory/{device}.
type MemoryResponse struct {
	Items *[]MemoryItem `json:"items"`
}

// MemoryRequest is the body of POST /api/memory.
type MemoryRequest struct {
	Device string `json:"device" validate:"required,max=128"`
	Key    string `json:"key" validate:"required,max=512"`
	Value  string `json:"value" validate:"max=65536"`
}

// MemoryItemResponse is returned by POST /api/memory.
type MemoryItemResponse struct {
	Item *MemoryItem `json:"item"`
}

// KeysResponse is returned by GET /api/keys/{device} and POST /api/keys.
type KeysResponse struct {
	Providers map[string]string `json:"providers"`
}

// KeysRequest is the body of POST /api/keys.
type KeysRequest struct {
	Device    string            `json:"device" validate:"required,max=128"`
	Providers map[string]string `json:"providers" validate:"required,dive,keys,required,max=64,endkeys,max=4096"`
}

// CodeResponse is returned by GET /api/code/{device} and POST /api/code.
type CodeResponse struct {
	HTML *string `json:"html"`
}

// CodeRequest is the body of POST /api/code.
type CodeRequest struct {
	Device string `json:"device" validate:"required,max=128"`
	HTML   string `json:"html" validate:"max=1048576"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
