//go:build !linux

package sampler

func raisePriority(int) error {
	return nil
}
