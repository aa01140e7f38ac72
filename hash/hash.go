package hash

import "github.com/minio/sha256-simd"

// Size is an alias to minio sha256.Size (32 bytes).
const Size = sha256.Size

// New is an alias to minio sha256.New.
var New = sha256.New
