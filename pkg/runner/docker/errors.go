package docker

import "errors"

var (
	// ErrDockerNotAvailable is returned when the Docker daemon cannot be reached
	ErrDockerNotAvailable = errors.New("docker is not available")

	// ErrImagePullFailed is returned when the sandbox image is missing and cannot be pulled
	ErrImagePullFailed = errors.New("failed to pull docker image")

	// ErrContainerFailed is returned when a container cannot be created or started
	ErrContainerFailed = errors.New("container execution failed")
)
