package command

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/amr-console/internal/protocol/amr"
)

func bodyJSON(t *testing.T, c Command) string {
	t.Helper()
	b, err := amr.MarshalBody(c.Body)
	require.NoError(t, err)
	return string(b)
}

func TestMoveToStation(t *testing.T) {
	b := NewBuilder(nil)

	c, err := b.MoveToStation("LM3")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0BEB), c.APIID)
	assert.Equal(t, 19206, c.Port)
	assert.Equal(t, amr.ProfileSync, c.Profile)
	assert.Equal(t, `{"id":"LM3","source_id":"SELF_POSITION"}`, bodyJSON(t, c))

	frame, err := c.Encode(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0B, 0xEB}, frame[8:10])
	assert.Equal(t, uint32(len(frame)-amr.HeaderSize), binary.BigEndian.Uint32(frame[4:8]))

	_, err = b.MoveToStation("  ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestJog(t *testing.T) {
	b := NewBuilder(nil)
	cases := map[Direction]string{
		DirUp:    `{"vx":0.5,"vy":0,"w":0,"duration":500}`,
		DirDown:  `{"vx":-0.5,"vy":0,"w":0,"duration":500}`,
		DirLeft:  `{"vx":0,"vy":0,"w":0.5,"duration":500}`,
		DirRight: `{"vx":0,"vy":0,"w":-0.5,"duration":500}`,
		DirStop:  `{"vx":0,"vy":0,"w":0,"duration":500}`,
	}
	for dir, want := range cases {
		t.Run(string(dir), func(t *testing.T) {
			c, err := b.Jog(dir)
			require.NoError(t, err)
			assert.Equal(t, uint16(2010), c.APIID)
			assert.Equal(t, 19205, c.Port)
			assert.Equal(t, want, bodyJSON(t, c))
		})
	}

	_, err := b.Jog("diagonal")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" Left ")
	require.NoError(t, err)
	assert.Equal(t, DirLeft, d)

	_, err = ParseDirection("forward")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLift(t *testing.T) {
	b := NewBuilder(nil)
	want := map[LiftAction]uint16{LiftUp: 0x17B6, LiftDown: 0x17B7, LiftStop: 0x17B8}
	for action, id := range want {
		c, err := b.Lift(action)
		require.NoError(t, err)
		assert.Equal(t, id, c.APIID)
		assert.Equal(t, 19204, c.Port)
		assert.Equal(t, amr.ProfileMagic, c.Profile)
		assert.Nil(t, c.Body)

		frame, err := c.Encode(0)
		require.NoError(t, err)
		assert.Len(t, frame, amr.HeaderSize)
		assert.Equal(t, []byte{0x55, 0xAA}, frame[:2])
	}

	a, err := ParseLiftAction("DOWN")
	require.NoError(t, err)
	assert.Equal(t, LiftDown, a)
	_, err = ParseLiftAction("spin")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = b.Lift("spin")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRelocate(t *testing.T) {
	b := NewBuilder(nil)

	manual, err := b.RelocateManual(1.5, -2, 90)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1.5,"y":-2,"angle":90}`, bodyJSON(t, manual))

	auto, err := b.RelocateAuto()
	require.NoError(t, err)
	assert.Nil(t, auto.Body)
	assert.Equal(t, manual.APIID, auto.APIID)
	assert.Equal(t, manual.Port, auto.Port)
}

func TestLaserAndMaps(t *testing.T) {
	b := NewBuilder(nil)

	laser, err := b.LaserScan()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x03F1), laser.APIID)
	assert.Equal(t, `{"return_beams3D":true}`, bodyJSON(t, laser))

	list, err := b.MapList()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0514), list.APIID)
	assert.Nil(t, list.Body)

	dl, err := b.MapDownload("floor1")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0FAB), dl.APIID)
	assert.Equal(t, 19207, dl.Port)
	assert.Equal(t, `{"map_name":"floor1"}`, bodyJSON(t, dl))

	_, err = b.MapDownload("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMapUpload(t *testing.T) {
	b := NewBuilder(nil)
	doc := json.RawMessage(`{"header": {"mapName": "floor1"}, "advancedPointList": [{"instanceName": "LM3"}]}`)

	c, err := b.MapUpload(doc)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0FAC), c.APIID)
	assert.Equal(t, 19205, c.Port)
	assert.JSONEq(t, string(doc), bodyJSON(t, c))

	_, err = b.MapUpload(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = b.MapUpload(json.RawMessage(`{"header":`))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSlam(t *testing.T) {
	b := NewBuilder(nil)

	start, err := b.SlamStart(DefaultSlamOptions())
	require.NoError(t, err)
	assert.Equal(t, uint16(6100), start.APIID)
	assert.Equal(t, 19210, start.Port)
	assert.Equal(t, `{"slam_type":2,"real_time":true,"screen_width":800,"screen_height":600}`, bodyJSON(t, start))

	stop, err := b.SlamStop()
	require.NoError(t, err)
	assert.Equal(t, uint16(6101), stop.APIID)
	assert.Nil(t, stop.Body)

	_, err = b.SlamStart(SlamOptions{ScreenWidth: -1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBuilder_CustomCatalog(t *testing.T) {
	cat := amr.DefaultCatalog()
	cat.APIs[amr.APIMapList] = amr.Endpoint{Name: amr.APIMapList, APIID: 0x0514, Port: 29204, Profile: amr.ProfileNameMagic}

	c, err := NewBuilder(cat).MapList()
	require.NoError(t, err)
	assert.Equal(t, 29204, c.Port)
	assert.Equal(t, amr.ProfileMagic, c.Profile)

	delete(cat.APIs, amr.APILaserScan)
	_, err = NewBuilder(cat).LaserScan()
	assert.Error(t, err)
}
