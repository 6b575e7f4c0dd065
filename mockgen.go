//go:build gomock || generate

package qram

//go:generate sh -c "go run go.uber.org/mock/mockgen -build_flags=\"-tags=gomock\" -package qram -self_package github.com/ddritzenhoff/qram -destination mock_camera_test.go github.com/ddritzenhoff/qram Camera,CameraFeed"
//go:generate sh -c "go run go.uber.org/mock/mockgen -build_flags=\"-tags=gomock\" -package qram -self_package github.com/ddritzenhoff/qram -destination mock_codec_test.go github.com/ddritzenhoff/qram Codec"
