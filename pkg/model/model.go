package model

// ObjectType is the proxy mode selected by the "type" query parameter.
type ObjectType string

const (
	ObjectTypeBlob     ObjectType = "blob"
	ObjectTypeManifest ObjectType = "manifest"
)

// ResourceType is the registry API collection an object lives in.
type ResourceType string

const (
	ResourceManifests ResourceType = "manifests"
	ResourceBlobs     ResourceType = "blobs"
)

const (
	HeaderAccept              = "Accept"
	HeaderAuthorization       = "Authorization"
	HeaderContentType         = "Content-Type"
	HeaderDockerContentDigest = "Docker-Content-Digest"
	HeaderLocation            = "Location"
	HeaderRange               = "Range"
	HeaderRequestID           = "X-Request-Id"
	HeaderUserAgent           = "User-Agent"
	HeaderWWWAuthenticate     = "WWW-Authenticate"
)
