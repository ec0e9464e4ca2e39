package httpmsg

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidRequest is returned for any request line or header block the
// parser cannot make sense of; callers map it to a 400 response.
var ErrInvalidRequest = errors.New("httpmsg: invalid request")

// ParseRequest parses one complete request out of data. The caller (the
// reactor's worker path) only invokes this once DetectComplete has
// confirmed the buffer holds a full request.
func ParseRequest(data []byte) (*Request, error) {
	lineEnd := bytes.Index(data, []byte("\r\n"))
	if lineEnd == -1 {
		return nil, ErrInvalidRequest
	}
	requestLine := data[:lineEnd]

	parts := strings.SplitN(string(requestLine), " ", 3)
	if len(parts) != 3 {
		return nil, ErrInvalidRequest
	}
	method, path, proto := parts[0], parts[1], parts[2]
	if method == "" || path == "" || path[0] != '/' {
		return nil, ErrInvalidRequest
	}
	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		return nil, ErrInvalidRequest
	}

	// The terminator may coincide with the request line's own CRLF when
	// the request carries no headers at all.
	headerEnd := bytes.Index(data, headerTerminator)
	if headerEnd == -1 {
		return nil, ErrInvalidRequest
	}

	var headerBlock []byte
	if headerEnd > lineEnd {
		headerBlock = data[lineEnd+2 : headerEnd]
	}
	headers := parseHeaders(headerBlock)
	bodyStart := headerEnd + len(headerTerminator)

	contentLength := 0
	if cl, ok := headers["content-length"]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return nil, ErrInvalidRequest
		}
		contentLength = n
	}

	bodyEnd := bodyStart + contentLength
	if bodyEnd > len(data) {
		return nil, ErrInvalidRequest
	}

	var body []byte
	if contentLength > 0 {
		body = append([]byte(nil), data[bodyStart:bodyEnd]...)
	}

	req := &Request{
		Method:  method,
		Path:    path,
		Proto:   proto,
		Headers: headers,
		Body:    body,
	}
	req.KeepAlive = deriveKeepAlive(proto, headers["connection"])
	return req, nil
}

func parseHeaders(block []byte) map[string]string {
	headers := make(map[string]string)
	if len(block) == 0 {
		return headers
	}
	for _, line := range bytes.Split(block, []byte("\r\n")) {
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		key := strings.ToLower(string(bytes.TrimSpace(line[:colon])))
		value := string(bytes.TrimSpace(line[colon+1:]))
		headers[key] = value
	}
	return headers
}

func deriveKeepAlive(proto, connection string) bool {
	connection = strings.ToLower(strings.TrimSpace(connection))
	switch proto {
	case "HTTP/1.1":
		return connection != "close"
	case "HTTP/1.0":
		return connection == "keep-alive"
	default:
		return false
	}
}
