package simulator

import (
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/protocol/amr"
	"github.com/taoyao-code/amr-console/internal/tcpserver"
)

// servePush 每个推送连接独立的位姿轨迹，按 pushInterval 发送
func (r *Robot) servePush(cc *tcpserver.ConnContext) {
	p, err := r.cat.Push.HeaderProfile()
	if err != nil {
		p = amr.ProfileMagic
	}
	apiID := uint16(r.cat.Push.Port)
	r.logger.Info("push client connected", zap.Uint64("conn", cc.ID()), zap.String("remote", cc.RemoteAddr().String()))

	go func() {
		t := time.NewTicker(r.cfg.PushInterval)
		defer t.Stop()
		ps := newPose()
		for {
			select {
			case <-cc.Done():
				r.logger.Info("push client disconnected", zap.Uint64("conn", cc.ID()))
				return
			case <-t.C:
				frame, err := amr.Encode(p, apiID, 0, ps.next())
				if err != nil {
					r.logger.Error("encode push frame failed", zap.Error(err))
					continue
				}
				if err := cc.Write(frame); err != nil {
					return
				}
			}
		}
	}()
}
